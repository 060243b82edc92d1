package labels

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_AllKeysSet(t *testing.T) {
	d := Defaults()
	for _, v := range []string{d.ListeningText, d.NothingReceived, d.ErrorPermission, d.ErrorPrefix, d.DeniedIcon, d.ErrorIcon} {
		if v == "" {
			t.Fatalf("default label table has an empty value: %+v", d)
		}
	}
}

func TestWithOverrides_Partial(t *testing.T) {
	got := Defaults().WithOverrides(map[string]string{
		KeyNothingReceived: "Rien entendu.",
		KeyErrorPrefix:     "Erreur",
		"unknownKey":       "ignored",
		KeyErrorIcon:       "",
	})

	if got.NothingReceived != "Rien entendu." {
		t.Errorf("expected override, got %q", got.NothingReceived)
	}
	if got.ErrorPrefix != "Erreur" {
		t.Errorf("expected override, got %q", got.ErrorPrefix)
	}
	if got.ListeningText != Defaults().ListeningText {
		t.Errorf("expected default listening text, got %q", got.ListeningText)
	}
	if got.ErrorIcon != Defaults().ErrorIcon {
		t.Errorf("empty override must keep default, got %q", got.ErrorIcon)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := Defaults().ErrorMessage("network"); got != "Error: network" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (Labels{}).ErrorMessage("network"); got != "Error: network" {
		t.Errorf("expected fallback prefix, got %q", got)
	}
	fr := Defaults().WithOverrides(map[string]string{KeyErrorPrefix: "Erreur"})
	if got := fr.ErrorMessage("audio-capture"); got != "Erreur: audio-capture" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestIsKey(t *testing.T) {
	for _, k := range Keys() {
		if !IsKey(k) {
			t.Errorf("expected %s to be a key", k)
		}
	}
	if IsKey("bogus") {
		t.Error("expected bogus not to be a key")
	}
}

const sampleFile = `
default:
  errorPrefix: Oops
locales:
  fr:
    listeningText: "J'écoute..."
    nothingReceived: "Je n'ai rien entendu."
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fr := c.Resolve("fr")
	if fr.ListeningText != "J'écoute..." {
		t.Errorf("unexpected fr listening text %q", fr.ListeningText)
	}
	if fr.ErrorPrefix != "Oops" {
		t.Errorf("expected fr to inherit default section, got %q", fr.ErrorPrefix)
	}
	if fr.ErrorPermission != Defaults().ErrorPermission {
		t.Errorf("expected built-in default, got %q", fr.ErrorPermission)
	}

	de := c.Resolve("de")
	if de.ListeningText != Defaults().ListeningText || de.ErrorPrefix != "Oops" {
		t.Errorf("unexpected fallback table %+v", de)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("locales: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte(sampleFile), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Resolve("fr").NothingReceived != "Je n'ai rien entendu." {
		t.Error("expected fr table from file")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCatalog_NilResolvesDefaults(t *testing.T) {
	var c *Catalog
	if c.Resolve("fr") != Defaults() {
		t.Error("expected defaults from nil catalog")
	}
}
