// Package validator adapts go-playground/validator to echo.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"healthbridge/internal/domain/entity"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/errors"

	"github.com/go-playground/validator/v10"
)

var (
	slotTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	totpCodePattern = regexp.MustCompile(`^\d{6}$`)
)

// Validator implements echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their json names and knows
// the portal's date, time and code formats.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}

		return name
	})

	mustRegister(v, "date", func(fl validator.FieldLevel) bool {
		_, err := entity.ParseAppointmentDate(fl.Field().String())

		return err == nil
	})
	mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
		return slotTimePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "totp", func(fl validator.FieldLevel) bool {
		return totpCodePattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate checks i and converts failures to a VALIDATION_FAILED error listing
// each offending field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithStack(err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}

	return domainerrors.ErrValidationFailed.WithDetails(strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "date":
		return field + " must be a date formatted YYYY-MM-DD"
	case "hhmm":
		return field + " must be a time formatted HH:MM"
	case "totp":
		return field + " must be a 6-digit code"
	case "uuid":
		return field + " must be a valid id"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
