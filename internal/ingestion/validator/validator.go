// Package validator decodes and validates document-reference payloads. It
// returns per-field error details wrapped in the validation sentinel so the
// pipeline can classify them as permanent.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/go-playground/validator/v10"
)

const maxFieldLength = 1024

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Decode parses payload into a DocumentReference and validates it. Both
// malformed JSON and failed validation wrap ErrValidation.
func Decode(payload []byte) (ingestion.DocumentReference, error) {
	var ref ingestion.DocumentReference
	if err := json.Unmarshal(payload, &ref); err != nil {
		return ref, apperrors.Wrap(apperrors.ErrValidation, err, "decoding document reference")
	}
	if err := ValidateReference(&ref); err != nil {
		return ref, err
	}
	return ref, nil
}

// ValidateReference checks that both fields are present, non-blank and of
// sane length.
func ValidateReference(ref *ingestion.DocumentReference) error {
	errs := make(map[string]string)
	if err := validate.Struct(ref); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.Wrap(apperrors.ErrValidation, err, "validating document reference")
		}
		for _, fe := range verrs {
			errs[fe.Field()] = fe.Field() + " is required"
		}
	}
	if len(ref.FolderPath) > maxFieldLength {
		errs["folderPath"] = fmt.Sprintf("folderPath must be at most %d characters", maxFieldLength)
	}
	if len(ref.Filename) > maxFieldLength {
		errs["filename"] = fmt.Sprintf("filename must be at most %d characters", maxFieldLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
