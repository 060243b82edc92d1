// Package schema validates messages received from capture clients.
package schema

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"voice-capture-service/internal/labels"
	"voice-capture-service/internal/models"
	"voice-capture-service/internal/observability/logging"
)

// MaxLabelLength bounds an override value, in runes.
const MaxLabelLength = 200

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid message")

type Validator struct {
	log zerolog.Logger
}

func New() *Validator {
	return &Validator{log: logging.WithComponent("schema")}
}

// Validate checks a client message. Unknown types are rejected.
func (v *Validator) Validate(msg models.ClientMessage) error {
	var err error
	switch msg.Type {
	case models.ClientOpen:
		err = v.validateOpen(msg)
	case models.ClientAudio:
		if msg.Granted == nil {
			err = fmt.Errorf("%w: audio message needs granted", ErrInvalid)
		}
	case models.ClientStop, models.ClientCancel:
	case "":
		err = fmt.Errorf("%w: missing type", ErrInvalid)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrInvalid, msg.Type)
	}
	if err != nil {
		v.log.Debug().Err(err).Str("type", msg.Type).Msg("Client message rejected")
	}
	return err
}

func (v *Validator) validateOpen(msg models.ClientMessage) error {
	if err := ValidateLanguageTag(msg.Lang); err != nil {
		return err
	}
	return ValidateLabels(msg.Labels)
}

// ValidateLanguageTag accepts an empty tag or a well-formed BCP 47 tag.
func ValidateLanguageTag(tag string) error {
	if tag == "" {
		return nil
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("%w: language tag %q: %v", ErrInvalid, tag, err)
	}
	return nil
}

// ValidateLabels accepts overrides for known label keys only.
func ValidateLabels(overrides map[string]string) error {
	for key, value := range overrides {
		if !labels.IsKey(key) {
			return fmt.Errorf("%w: unknown label %q", ErrInvalid, key)
		}
		if utf8.RuneCountInString(value) > MaxLabelLength {
			return fmt.Errorf("%w: label %q longer than %d characters", ErrInvalid, key, MaxLabelLength)
		}
	}
	return nil
}
