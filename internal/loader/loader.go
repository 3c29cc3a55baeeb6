// Package loader imports a graph file from disk into the running service.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"graphsketch/internal/codec"
	"graphsketch/internal/service"
)

// Importer is the part of the graph service a loader needs
type Importer interface {
	Import(ctx context.Context, importer codec.Importer, r io.Reader, strategy string) (*service.ImportResult, error)
}

// CodecForPath picks a codec from the file extension (.json, .yaml or .yml)
func CodecForPath(path string) (codec.Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot infer format of %s: no extension", path)
	}
	return codec.ForFormat(ext)
}

// LoadFile imports the graph file at path with the given strategy
func LoadFile(ctx context.Context, svc Importer, path, strategy string) (*service.ImportResult, error) {
	c, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	result, err := svc.Import(ctx, c, f, strategy)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return result, nil
}
