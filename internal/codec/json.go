package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"graphsketch/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports graph data from JSON. Unknown fields are rejected.
func (c *JSONCodec) Parse(r io.Reader) (*domain.GraphFragment, error) {
	var fragment domain.GraphFragment
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fragment); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: fmt.Sprintf("failed to parse JSON: %v", err)}
	}

	return &fragment, nil
}

// Export exports graph data to JSON
func (c *JSONCodec) Export(fragment *domain.GraphFragment, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(normalize(fragment)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// normalize swaps nil slices for empty ones so exports never contain null
func normalize(fragment *domain.GraphFragment) *domain.GraphFragment {
	out := domain.NewGraphFragment()
	if fragment == nil {
		return out
	}
	out.Nodes = append(out.Nodes, fragment.Nodes...)
	out.Edges = append(out.Edges, fragment.Edges...)
	return out
}
