// Package validation runs struct-tag validation and reports failures as
// field-keyed service errors.
package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/R3E-Network/storefront/internal/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates s. Failures come back as a CodeValidation ServiceError
// whose Fields map form field names to user-facing messages.
func Struct(s interface{}) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Internal("validation failed", err)
	}
	se := errors.Validation("Проверьте правильность заполнения формы.")
	for _, fe := range verrs {
		se.WithField(fe.Field(), message(fe))
	}
	return se
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле."
	case "email":
		return "Некорректный email."
	case "max":
		return "Слишком длинное значение."
	case "gt":
		return "Значение должно быть больше нуля."
	case "oneof":
		return "Недопустимое значение."
	default:
		return "Некорректное значение."
	}
}
