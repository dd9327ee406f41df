package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationError renders validator.ValidationErrors as a single
// human-readable message, one clause per failed field.
func FormatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, ferr := range verrs {
		field := strings.ToLower(ferr.Field())

		switch ferr.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must have at least %s elements", field, ferr.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must have at most %s elements", field, ferr.Param()))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", field, ferr.Param()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be greater than or equal to %s", field, ferr.Param()))
		case "lte":
			parts = append(parts, fmt.Sprintf("%s must be less than or equal to %s", field, ferr.Param()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email address", field))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}
