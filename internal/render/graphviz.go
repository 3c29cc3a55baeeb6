package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"graphsketch/internal/export"
)

// Options configures the Graphviz runner
type Options struct {
	Binary  string        // path or name of the layout binary, usually "dot"
	Format  string        // output format passed as -T, e.g. "png" or "svg"
	Timeout time.Duration // per-render limit; zero means no limit
}

// Graphviz renders descriptions by piping DOT into the Graphviz binary
type Graphviz struct {
	opts   Options
	logger *zap.Logger
}

// NewGraphviz creates a runner. Empty options fall back to "dot" and "png".
func NewGraphviz(opts Options, logger *zap.Logger) *Graphviz {
	if opts.Binary == "" {
		opts.Binary = "dot"
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graphviz{opts: opts, logger: logger}
}

// Format returns the configured output format
func (g *Graphviz) Format() string {
	return g.opts.Format
}

// Render writes desc as an image to outPath, creating parent directories
func (g *Graphviz) Render(ctx context.Context, desc *export.Description, outPath string) error {
	src, err := EncodeDOT(desc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.opts.Binary, "-T"+g.opts.Format, "-o", outPath)
	cmd.Stdin = bytes.NewReader(src)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("graphviz %s failed: %w: %s", g.opts.Binary, err, msg)
		}
		return fmt.Errorf("graphviz %s failed: %w", g.opts.Binary, err)
	}

	g.logger.Debug("rendered graph",
		zap.String("path", outPath),
		zap.Int("nodes", len(desc.Nodes)),
		zap.Int("edges", len(desc.Edges)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
