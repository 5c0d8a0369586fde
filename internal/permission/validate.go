package permission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Value any    `json:"value,omitempty"`
}

// keyPartChars may not appear in resource or action types. Both are joined with ':'
// into check and cache keys, and cache keys are matched as glob patterns.
const keyPartChars = ":*?[]\\ \t\r\n"

var validate = newValidator() //nolint:gochecknoglobals

func newValidator() *validator.Validate {
	v := validator.New()

	if err := v.RegisterValidation("keypart", keyPart); err != nil {
		panic(err)
	}

	return v
}

func keyPart(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), keyPartChars)
}

// Validate checks the validate tags of input and returns a *ValidationError listing every failed field.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error())
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Value: fe.Value()})
		names = append(names, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}

	return &ValidationError{Msg: "invalid input: " + strings.Join(names, ", "), Fields: fields}
}
