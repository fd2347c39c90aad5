// Package validation checks tagged request structs with go-playground/validator
// and turns the first failure into a coded validation error.
package validation

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
)

// Validator is safe for concurrent use once its rules are registered.
type Validator struct {
	v *validator.Validate
}

// New returns a validator that reports fields by their JSON names and knows
// the notblank rule.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// MustRegister adds a custom rule under tag. It panics on a bad tag, so call
// it while building package-level validators.
func (v *Validator) MustRegister(tag string, fn validator.Func) *Validator {
	if err := v.v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
	return v
}

// Check validates s. The first failing field becomes a validation error
// under code, with the field path and broken rule as metadata.
func (v *Validator) Check(s interface{}, code apperrors.Code) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !stderrors.As(err, &fields) || len(fields) == 0 {
		return apperrors.Wrap(apperrors.KindValidation, code, "validation failed", err)
	}
	fe := fields[0]
	field := fieldPath(fe)
	return apperrors.Wrap(apperrors.KindValidation, code, field+" "+describe(fe), err).
		With("field", field).
		With("rule", fe.Tag())
}

// fieldPath is the field's namespace without the root struct name, e.g.
// "cast[1].skill".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is not valid"
}
