package validators

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

// nationalIDPattern accepts 12.345.678-5 and 12345678-5 (check digit may be K).
var nationalIDPattern = regexp.MustCompile(`^\d{1,2}\.?\d{3}\.?\d{3}-[\dkK]$`)

// IsNationalID reports whether raw looks like a national id.
func IsNationalID(raw string) bool {
	return nationalIDPattern.MatchString(strings.TrimSpace(raw))
}

var structs = func() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON name so details line up with the request.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return IsNationalID(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}()

// ruleMessages maps a validate tag to the phrase shown to clients; "%s" is
// replaced by the tag parameter.
var ruleMessages = map[string]string{
	"required":    "is required",
	"min":         "must be at least %s",
	"max":         "must be at most %s",
	"gte":         "must be at least %s",
	"lte":         "must be at most %s",
	"gt":          "must not be empty",
	"dive":        "must not be empty",
	"email":       "must be a valid email",
	"oneof":       "must be one of: %s",
	"national_id": "must be a national id like 12345678-5",
}

func ruleMessage(fe validator.FieldError) string {
	msg, ok := ruleMessages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	if strings.Contains(msg, "%s") {
		return strings.Replace(msg, "%s", fe.Param(), 1)
	}
	return msg
}

// checkStruct runs the validate tags on dest and returns per-field messages
// keyed by JSON field name.
func checkStruct(dest any) error {
	err := structs.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = ruleMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
