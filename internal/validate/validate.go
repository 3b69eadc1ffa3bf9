// Package validate checks service inputs with go-playground/validator and
// turns the failures into apperror field errors.
//
// Inputs declare their rules in `validate` struct tags:
//
//	type ContactInput struct {
//	    Name  string `json:"name" validate:"required,max=100"`
//	    Email string `json:"email" validate:"required,email"`
//	}
//
// Errors are keyed by the json name, so the client sees the same field
// names it sent: {"email": ["Enter a valid email address."]}.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/highlight"
)

// usernamePattern allows letters, digits and @ . + - _
var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under the json name instead of the Go field name.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(val, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(val, "language", func(fl validator.FieldLevel) bool {
		return highlight.ValidLanguage(fl.Field().String())
	})
	mustRegister(val, "style", func(fl validator.FieldLevel) bool {
		return highlight.ValidStyle(fl.Field().String())
	})
	return val
}

func mustRegister(val *validator.Validate, tag string, fn validator.Func) {
	if err := val.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: registering %q: %v", tag, err))
	}
}

// Messages overrides the default message for a "field.tag" pair, e.g.
// {"email.required": "Email is required"}.
type Messages map[string]string

// Check validates s and returns every failure. The result is empty (not
// nil) when s is valid, so callers can keep adding business-rule errors:
//
//	errs := validate.Check(in, nil)
//	if in.Password != in.Password2 { errs.Add("password2", "...") }
//	return errs.Err()
func Check(s any, msgs Messages) apperror.FieldErrors {
	errs := apperror.FieldErrors{}

	err := v.Struct(s)
	if err == nil {
		return errs
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: s was not a struct. A programming error.
		panic(fmt.Sprintf("validate: %v", err))
	}

	for _, fe := range verrs {
		field := fe.Field()
		if msg, ok := msgs[field+"."+fe.Tag()]; ok {
			errs.Add(field, msg)
			continue
		}
		errs.Add(field, message(fe))
	}
	return errs
}

// Struct is Check followed by Err: nil when s is valid.
func Struct(s any) error {
	return Check(s, nil).Err()
}

// Email reports whether s is a syntactically valid address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// Username reports whether s is a valid username.
func Username(s string) bool {
	return v.Var(s, "required,max=150,username") == nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "language", "style", "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
