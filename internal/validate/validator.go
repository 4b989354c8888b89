// Package validate validates phenotype, filter, and cohort constructor
// parameters with go-playground/validator before a workflow is built.
// Failures are surfaced as *phenexerr.ConfigurationError.
//
//	type CodelistPhenotypeParams struct {
//	    Name       string `validate:"required"`
//	    ReturnDate string `validate:"required,oneof=first last all"`
//	}
//
//	if err := validate.Struct(&params, name); err != nil {
//	    return nil, err
//	}
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// Validator returns the singleton validator instance, built once with
// WithRequiredStructEnabled for v10 dereference-pointer semantics.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct validates s and, on failure, returns a *phenexerr.ConfigurationError
// naming node and listing every failed field in one message.
func Struct(s interface{}, node string) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &phenexerr.ConfigurationError{Node: node, Detail: err.Error()}
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = translateError(fe)
	}
	return &phenexerr.ConfigurationError{Node: node, Detail: strings.Join(messages, "; ")}
}

var simpleTemplates = map[string]string{
	"required": "%s is required",
	"oneof":    "%s must be one of: %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := simpleTemplates[tag]; ok {
		if strings.Count(template, "%s") == 2 {
			return fmt.Sprintf(template, field, param)
		}
		return fmt.Sprintf(template, field)
	}

	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
