package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"graphsketch/internal/domain"
)

var validate = validator.New()

// CreateNodeRequest is the body of POST /api/nodes
type CreateNodeRequest struct {
	Name  string `json:"name" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=plain colored"`
	Color string `json:"color" validate:"required_if=Type colored"`
}

// kind infers the variant from the color when type is omitted and
// rejects a color on a plain node
func (r CreateNodeRequest) kind() (domain.NodeKind, error) {
	return domain.NodeKindFor(r.Type, r.Color)
}

// CreateEdgeRequest is the body of POST /api/edges
type CreateEdgeRequest struct {
	Type   string `json:"type" validate:"omitempty,oneof=plain weighted"`
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Weight *int   `json:"weight" validate:"required_if=Type weighted"`
}

// kind infers the variant from the weight when type is omitted and
// rejects a weight on a plain edge
func (r CreateEdgeRequest) kind() (domain.EdgeKind, error) {
	return domain.EdgeKindFor(r.Type, r.Weight)
}

// UpdateNodeRequest is the body of PATCH /api/nodes/{id}
type UpdateNodeRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Color *string `json:"color" validate:"omitempty,min=1"`
}

// decodeJSON reads a JSON body into dst and runs struct validation.
// Failures come back as *domain.ValidationError.
func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Message: err.Error()}
	}
	return validateStruct(dst)
}

// validateStruct validates a struct based on its validation tags
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, strings.ToLower(e.Field()))
		messages = append(messages, formatFieldError(e))
	}
	return &domain.ValidationError{
		Field:   strings.Join(fields, ","),
		Message: strings.Join(messages, "; "),
	}
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must not be empty", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
