// Package validation wraps struct-tag validation of request payloads.
package validation

import (
	"errors"

	errs "paylock/internal/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Struct validates tagged fields and folds failures into a single
// VALIDATION_FAILED error naming the first offending field.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return errs.Validation("field %s failed rule %s", f.Field(), f.Tag())
	}
	return errs.Validation("invalid request payload")
}
