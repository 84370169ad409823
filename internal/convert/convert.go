// Package convert turns editable documents into fixed-layout PDFs through an
// external converter, one bracketed call at a time.
package convert

import (
	"context"
)

// Converter converts the document at docxPath into a PDF inside outDir and
// returns the PDF's path
type Converter interface {
	Convert(ctx context.Context, docxPath, outDir string) (string, error)
}

// Func adapts a function to Converter
type Func func(ctx context.Context, docxPath, outDir string) (string, error)

// Convert calls f
func (f Func) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	return f(ctx, docxPath, outDir)
}

// Resource is the stateful environment a converter needs. It is initialized
// before and torn down after every conversion.
type Resource interface {
	Acquire(ctx context.Context) error
	Release() error
}

// NopResource is a Resource with nothing to set up
type NopResource struct{}

func (NopResource) Acquire(context.Context) error { return nil }
func (NopResource) Release() error                { return nil }
