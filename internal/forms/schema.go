package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/gaev-art/gain-grid/internal/validation"

	"github.com/go-playground/validator/v10"
)

// GeneralErrorKey holds errors that do not belong to a single field.
const GeneralErrorKey = "general"

// Schema validates a whole value and reports one message per failing field.
// A nil or empty map means the value is valid.
type Schema[T any] interface {
	Validate(data T) map[string]string
}

// SchemaFunc adapts a plain function to Schema.
type SchemaFunc[T any] func(data T) map[string]string

func (f SchemaFunc[T]) Validate(data T) map[string]string { return f(data) }

// StructSchema validates T through its `validate` struct tags. Errors are keyed
// by the json name of the field.
type StructSchema[T any] struct {
	validate *validator.Validate
}

func NewStructSchema[T any]() *StructSchema[T] {
	return &StructSchema[T]{validate: newValidator()}
}

func (s *StructSchema[T]) Validate(data T) map[string]string {
	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{GeneralErrorKey: "Validation failed"}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := fe.Field()
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = message(fe)
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return FieldName(f)
	})
	if err := registerRules(v, customRules); err != nil {
		panic(err)
	}
	return v
}

// customRules are the tags backed by the validation package.
var customRules = map[string]func(string) error{
	"password": validation.ValidatePassword,
	"fullname": validation.ValidateFullName,
}

func registerRules(v *validator.Validate, rules map[string]func(string) error) error {
	for tag, rule := range rules {
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String()) == nil
		})
		if err != nil {
			return fmt.Errorf("failed to register %q rule: %w", tag, err)
		}
	}
	return nil
}

// FieldName is the key a struct field is reported under: its json name, or
// the Go name when the field has no json tag.
func FieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	value := fmt.Sprint(fe.Value())

	switch fe.Tag() {
	case "required":
		if fe.Field() == "confirmPassword" {
			return "Please confirm your password"
		}
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "eqfield":
		if fe.Param() == "Password" {
			return "Passwords do not match"
		}
		return fmt.Sprintf("%s must match %s", label, humanize(fe.Param()))
	case "password":
		return capitalize(validation.ValidatePassword(value))
	case "fullname":
		return capitalize(validation.ValidateFullName(value))
	}
	return label + " is invalid"
}

// humanize turns "confirmPassword" into "Confirm password".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(err error) string {
	if err == nil {
		return "Invalid value"
	}
	msg := err.Error()
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
