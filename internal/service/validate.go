package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks v's `validate` struct tags and reports the first failure
// as an ErrValidation with a readable message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid("%s is required", fe.Field())
	case "email":
		return invalid("%s must be a valid email address", fe.Field())
	case "min":
		return invalid("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return invalid("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt", "gte":
		return invalid("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return invalid("%s must be one of [%s]", fe.Field(), fe.Param())
	}
	return invalid("%s is invalid", fe.Field())
}
