package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ReservationPlanSchema describes the object the intent model is asked to return.
var ReservationPlanSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"cuisine":    map[string]interface{}{"type": "string"},
		"datetime":   map[string]interface{}{"type": "string", "pattern": `^(\d{4}-\d{2}-\d{2} \d{2}:\d{2})?$`},
		"party_size": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		"location":   map[string]interface{}{"type": "string"},
		"restaurant": map[string]interface{}{"type": "string"},
		"notes":      map[string]interface{}{"type": "string"},
	},
}

// Validate checks document (any JSON-marshalable Go value) against schema.
func Validate(schema map[string]interface{}, document interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "(root)" {
		if p, ok := desc.Details()["property"].(string); ok {
			return p
		}
	}
	return field
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateE164 reports whether phone is an E.164 number such as +886212345678.
func ValidateE164(phone string) bool {
	return phonePattern.MatchString(phone)
}
