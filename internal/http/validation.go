package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/teammeeting/internal/application"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks struct tags and reports failures in the same shape
// as service validation errors.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fieldPath(fe)
		if _, exists := vErr.FieldErrors[field]; exists {
			continue
		}
		switch fe.Tag() {
		case "required":
			vErr.FieldErrors[field] = field + " is required"
		default:
			vErr.FieldErrors[field] = field + " is invalid"
		}
	}
	return vErr
}

// fieldPath drops the struct name prefix of the namespace, so nested slices
// read as "teacher_ids[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
