// Package labels holds the user-facing strings shown by a capture surface.
package labels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Label keys, as used in overrides and label files.
const (
	KeyListeningText   = "listeningText"
	KeyNothingReceived = "nothingReceived"
	KeyErrorPermission = "errorPermission"
	KeyErrorPrefix     = "errorPrefix"
	KeyDeniedIcon      = "deniedIcon"
	KeyErrorIcon       = "errorIcon"
)

// Labels is a resolved label table.
type Labels struct {
	ListeningText   string `yaml:"listeningText" json:"listeningText"`
	NothingReceived string `yaml:"nothingReceived" json:"nothingReceived"`
	ErrorPermission string `yaml:"errorPermission" json:"errorPermission"`
	ErrorPrefix     string `yaml:"errorPrefix" json:"errorPrefix"`
	DeniedIcon      string `yaml:"deniedIcon" json:"deniedIcon"`
	ErrorIcon       string `yaml:"errorIcon" json:"errorIcon"`
}

// Defaults returns the built-in English label table.
func Defaults() Labels {
	return Labels{
		ListeningText:   "Listening...",
		NothingReceived: "Didn't catch that. Try again?",
		ErrorPermission: "Microphone access denied.",
		ErrorPrefix:     "Error",
		DeniedIcon:      "🚫",
		ErrorIcon:       "⚠️",
	}
}

// Keys returns every known label key.
func Keys() []string {
	return []string{
		KeyListeningText,
		KeyNothingReceived,
		KeyErrorPermission,
		KeyErrorPrefix,
		KeyDeniedIcon,
		KeyErrorIcon,
	}
}

// IsKey reports whether key names a label.
func IsKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Merge returns l with every non-empty field of o applied on top.
func (l Labels) Merge(o Labels) Labels {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&l.ListeningText, o.ListeningText)
	set(&l.NothingReceived, o.NothingReceived)
	set(&l.ErrorPermission, o.ErrorPermission)
	set(&l.ErrorPrefix, o.ErrorPrefix)
	set(&l.DeniedIcon, o.DeniedIcon)
	set(&l.ErrorIcon, o.ErrorIcon)
	return l
}

// WithOverrides applies key/value overrides. Unknown keys and empty values
// are ignored, so unspecified keys keep their current value.
func (l Labels) WithOverrides(overrides map[string]string) Labels {
	var o Labels
	for key, value := range overrides {
		switch key {
		case KeyListeningText:
			o.ListeningText = value
		case KeyNothingReceived:
			o.NothingReceived = value
		case KeyErrorPermission:
			o.ErrorPermission = value
		case KeyErrorPrefix:
			o.ErrorPrefix = value
		case KeyDeniedIcon:
			o.DeniedIcon = value
		case KeyErrorIcon:
			o.ErrorIcon = value
		}
	}
	return l.Merge(o)
}

// ErrorMessage renders the message shown for a backend error code.
func (l Labels) ErrorMessage(code string) string {
	prefix := l.ErrorPrefix
	if prefix == "" {
		prefix = "Error"
	}
	return fmt.Sprintf("%s: %s", prefix, code)
}

// Catalog maps primary language subtags to label tables layered on the
// defaults.
type Catalog struct {
	base    Labels
	locales map[string]Labels
}

// NewCatalog creates a catalog that resolves every language to base.
func NewCatalog(base Labels) *Catalog {
	return &Catalog{base: base, locales: map[string]Labels{}}
}

// LoadFile reads a YAML label file of the form
//
//	default:
//	  listeningText: Listening...
//	locales:
//	  fr:
//	    listeningText: J'écoute...
//
// The default section is merged over Defaults, and each locale over the
// result.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML label document. See LoadFile for the format.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Default Labels            `yaml:"default"`
		Locales map[string]Labels `yaml:"locales"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode label file: %w", err)
	}

	c := NewCatalog(Defaults().Merge(doc.Default))
	for lang, l := range doc.Locales {
		c.locales[lang] = c.base.Merge(l)
	}
	return c, nil
}

// Resolve returns the table for a primary language subtag, falling back to
// the catalog's base table.
func (c *Catalog) Resolve(primarySubtag string) Labels {
	if c == nil {
		return Defaults()
	}
	if l, ok := c.locales[primarySubtag]; ok {
		return l
	}
	return c.base
}
