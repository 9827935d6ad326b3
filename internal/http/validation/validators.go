// Package validation checks decoded request payloads against struct tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/target/sessiond/internal/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so clients can map errors back to inputs.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s and returns an invalid_input AppError naming the first
// offending field. Missing required fields share one message.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "request validation failed")
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperrors.ValidationField(fe.Field(), "All fields required")
		}
	}
	fe := verrs[0]
	return apperrors.ValidationField(fe.Field(), Message(fe.Field(), fe.Tag(), fe.Param()))
}

// Message renders a short, client-safe description of a failed rule.
func Message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required."
	case "email":
		return field + " must be a valid email address."
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters.", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", field, param)
	case "printascii":
		return field + " contains unsupported characters."
	default:
		return fmt.Sprintf("%s failed the %q rule.", field, tag)
	}
}
