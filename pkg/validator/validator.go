// Package validator wraps struct-tag request validation.
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates structs against their `validate` tags.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate runs struct-tag validation and returns a single combined error
// describing every failing field.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("validation failed: %v", msgs)
		}
		return err
	}
	return nil
}
