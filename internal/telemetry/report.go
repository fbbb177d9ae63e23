// Package telemetry implements the reading contract of the relay: payload
// parsing, single-slot replacement and best-effort relay to a peer.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/relaybot/internal/storage"
)

var (
	// ErrMalformedInput is returned when a payload is not a JSON object.
	ErrMalformedInput = errors.New("malformed input")
	// ErrMissingField is wrapped by FieldError for absent required keys.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidField is wrapped by FieldError for keys of the wrong type.
	ErrInvalidField = errors.New("invalid field")
)

// FieldError reports a problem with a single payload key.
type FieldError struct {
	Field string
	Err   error // ErrMissingField or ErrInvalidField
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Report is a telemetry payload as sent by a device. Bot is optional; the
// earliest firmware did not send it.
type Report struct {
	Bot   *string `json:"bot,omitempty"`
	Left  *int    `json:"left" validate:"required"`
	Right *int    `json:"right" validate:"required"`
	State *string `json:"state" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseReport decodes and validates raw. Unknown keys are ignored.
func ParseReport(raw []byte) (Report, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Report{}, ErrMalformedInput
	}

	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Report{}, &FieldError{Field: typeErr.Field, Err: ErrInvalidField}
		}
		return Report{}, ErrMalformedInput
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Report{}, &FieldError{Field: verrs[0].Field(), Err: ErrMissingField}
		}
		return Report{}, fmt.Errorf("validating report: %w", err)
	}

	return r, nil
}

// Record converts a validated report into a storage record.
func (r Report) Record() storage.Record {
	rec := storage.Record{
		LeftSpeed:  *r.Left,
		RightSpeed: *r.Right,
		State:      *r.State,
	}
	if r.Bot != nil {
		rec.BotID = *r.Bot
	}
	return rec
}
