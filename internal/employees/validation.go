package employees

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/employee-console/internal/roles"
)

// FieldErrors maps form field paths (e.g. "phones[1].number") to messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidator returns a validator that knows the role and phone type
// enumerations and reports fields by their form names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		role, ok := fl.Field().Interface().(roles.Role)
		return ok && role.Valid()
	})
	_ = v.RegisterValidation("phonetype", func(fl validator.FieldLevel) bool {
		phoneType, ok := fl.Field().Interface().(PhoneType)
		return ok && phoneType.Valid()
	})
	return v
}

// ValidateForm checks the form; creating additionally requires a password.
func ValidateForm(v *validator.Validate, form EmployeeForm, creating bool) FieldErrors {
	errs := FieldErrors{}
	if err := v.Struct(form); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			errs["general"] = err.Error()
			return errs
		}
		for _, fieldErr := range validationErrs {
			errs[fieldPath(fieldErr.Namespace())] = message(fieldErr)
		}
	}
	if creating && strings.TrimSpace(form.Password) == "" {
		errs["password"] = "is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// fieldPath drops the struct name from the namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "role":
		return "must be one of Director, Leader, Employee"
	case "phonetype":
		return "must be one of Mobile, Home, Work"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
