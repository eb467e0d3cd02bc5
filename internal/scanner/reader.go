package scanner

import (
	"context"
	"io"
	"os"

	"github.com/standardbeagle/scriptref/internal/types"
)

// DocumentReader opens a document for streaming
type DocumentReader interface {
	Open(ctx context.Context, key types.DocumentKey) (io.ReadCloser, error)
}

// FileReader reads documents from the local filesystem
type FileReader struct{}

// Open implements DocumentReader
func (FileReader) Open(ctx context.Context, key types.DocumentKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(key.Path())
	if err != nil {
		return nil, err
	}
	return f, nil
}

// contextReader fails reads once ctx is done so a slow or huge document stops at its deadline
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
