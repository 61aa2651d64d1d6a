// Package comments validates reader comment forms and submits them to the intake endpoint.
package comments

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form is the comment form as posted by the page and as sent to the intake endpoint.
type Form struct {
	PostID  string `json:"_id" form:"_id" validate:"required"`
	Name    string `json:"name" form:"name" validate:"required,max=100"`
	Email   string `json:"email" form:"email" validate:"required,email,max=254"`
	Comment string `json:"comment" form:"comment" validate:"required,max=2000"`
}

// Normalize trims surrounding whitespace from every field.
func (f *Form) Normalize() {
	f.PostID = strings.TrimSpace(f.PostID)
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Comment = strings.TrimSpace(f.Comment)
}

// FieldErrors maps a form field name (its JSON name) to a message for the reader.
type FieldErrors map[string]string

var labels = map[string]string{
	"_id":     "Post",
	"name":    "Name",
	"email":   "Email",
	"comment": "Comment",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks f after normalizing it and returns nil when every field passes.
func Validate(f *Form) FieldErrors {
	f.Normalize()
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	label := labels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return "The " + label + " field is required"
	case "email":
		return "The " + label + " field must be a valid email address"
	case "max":
		return "The " + label + " field must be at most " + fe.Param() + " characters"
	default:
		return "The " + label + " field is invalid"
	}
}
