package models

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

	// Report fields by their JSON names so errors match what the model produced.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("service_type", func(fl validator.FieldLevel) bool {
		return ServiceType(fl.Field().String()).IsValid()
	})
	return v
}

// ValidateStruct runs the struct-tag rules on v. Failures are returned as a
// *ValidationError naming every offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range fieldErrs {
		out.Add(trimNamespace(fe.Namespace()), describeTag(fe))
	}
	return out
}

// trimNamespace drops the root struct name from "DiscoveryResult.business_context.company_stage".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "service_type":
		return "must be Dedicated VA, Projects on Demand, or Unicorn VA Service"
	case "url":
		return "must be a valid URL"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a request or model output.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records one invalid field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// orNil returns e as an error only when it holds failures.
func (e *ValidationError) orNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
