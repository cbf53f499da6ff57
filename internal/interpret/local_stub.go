//go:build !llamacpp

package interpret

import (
	"context"
	"fmt"
)

// LocalEmbedder is the stub used when the llamacpp build tag is not set.
// It is never available, so callers fall back to other interpreters.
type LocalEmbedder struct {
	modelPath string
}

// NewLocalEmbedder creates a stub LocalEmbedder.
func NewLocalEmbedder(cfg LocalConfig) *LocalEmbedder {
	return &LocalEmbedder{modelPath: cfg.ModelPath}
}

// Available returns false: local inference is not compiled in.
func (c *LocalEmbedder) Available() bool {
	return false
}

// Embed returns an error: local inference is not compiled in.
func (c *LocalEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("local embeddings not available: build with -tags llamacpp")
}

// Close is a no-op.
func (c *LocalEmbedder) Close() error {
	return nil
}
