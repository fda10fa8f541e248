package serverutils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and returns validator.ValidationErrors on failure.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

// FailedField returns the first failing struct field name, or "" when err is not a
// validation error.
func FailedField(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ""
	}
	return verrs[0].StructField()
}

// ValidationMessage renders validation failures as "Field: tag" pairs.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.StructField()+": "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
