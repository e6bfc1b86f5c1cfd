// internal/utils/validator.go
package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var sqlIdentifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("sql_identifier", validateSQLIdentifier)
}

// ValidateStruct validates s and flattens any field errors into one readable error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrors := GetValidationErrors(err)
	if len(fieldErrors) == 0 {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, e := range fieldErrors {
		messages = append(messages, e.Message)
	}
	return errors.New(strings.Join(messages, "; "))
}

// IsSQLIdentifier reports whether name can be interpolated unquoted into SQL.
func IsSQLIdentifier(name string) bool {
	return sqlIdentifierRe.MatchString(name)
}

func validateSQLIdentifier(fl validator.FieldLevel) bool {
	return IsSQLIdentifier(fl.Field().String())
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Namespace(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return e.Namespace() + " is required"
	case "min":
		return e.Namespace() + " must be at least " + e.Param()
	case "max":
		return e.Namespace() + " must be at most " + e.Param()
	case "oneof":
		return e.Namespace() + " must be one of [" + e.Param() + "]"
	case "numeric":
		return e.Namespace() + " must be numeric"
	case "url":
		return e.Namespace() + " must be a URL"
	case "sql_identifier":
		return e.Namespace() + " must be a plain SQL identifier"
	default:
		return e.Namespace() + " is invalid"
	}
}
