package utils

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStruct runs the `validate` tags of input and flattens the failures
// into one error ("field: tag, field: tag").
func ValidateStruct(input any) error {
	err := getValidator().Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := ProcessValidationErrors(verrs)
	parts := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		parts = append(parts, ve.Namespace()+": "+fields[ve.Field()])
	}
	return errors.New("invalid input: " + strings.Join(parts, ", "))
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
