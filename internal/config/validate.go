package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/ecompat/internal/chem"
)

// presetValidate is the validator instance for presets.
// Initialized in init() with custom validators.
var presetValidate *validator.Validate

func init() {
	presetValidate = validator.New()

	_ = presetValidate.RegisterValidation("haskey", validateHasKey)
	_ = presetValidate.RegisterValidation("element", validateElement)
	_ = presetValidate.RegisterValidation("formula", validateFormula)
}

// validateHasKey checks that a string-keyed map contains the key named by
// the tag parameter.
func validateHasKey(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Map {
		return false
	}
	return field.MapIndex(reflect.ValueOf(fl.Param())).IsValid()
}

func validateElement(fl validator.FieldLevel) bool {
	return chem.IsElement(fl.Field().String())
}

func validateFormula(fl validator.FieldLevel) bool {
	_, err := chem.Parse(fl.Field().String())
	return err == nil
}

// Validate checks a preset's required fields and table keys.
func Validate(p *Preset) error {
	err := presetValidate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &LoadError{Code: ErrCodeInvalidPreset, Message: err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &LoadError{Code: ErrCodeInvalidPreset, Message: strings.Join(msgs, "; ")}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Preset.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "haskey":
		return fmt.Sprintf("%s must contain %q", field, fe.Param())
	case "element":
		return fmt.Sprintf("%s: %v is not an element symbol", field, fe.Value())
	case "formula":
		return fmt.Sprintf("%s: %v is not a chemical formula", field, fe.Value())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
