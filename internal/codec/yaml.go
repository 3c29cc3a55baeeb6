package codec

import (
	"errors"
	"fmt"
	"io"

	"graphsketch/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports graph data from YAML. An empty document is an empty graph.
func (c *YAMLCodec) Parse(r io.Reader) (*domain.GraphFragment, error) {
	fragment := domain.NewGraphFragment()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(fragment); err != nil && !errors.Is(err, io.EOF) {
		return nil, &domain.ValidationError{Field: "body", Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}

	return fragment, nil
}

// Export exports graph data to YAML
func (c *YAMLCodec) Export(fragment *domain.GraphFragment, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(normalize(fragment)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
