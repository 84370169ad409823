package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageSet is one contiguous run of pages in a merged stream
type PageSet struct {
	Label string
	Data  []byte
}

// Merger concatenates page sets into one document
type Merger struct{}

// NewMerger creates a merger
func NewMerger() *Merger {
	return &Merger{}
}

// Merge writes every page of every set to w, in the order given. Pages are
// neither reordered nor renumbered.
func (m *Merger) Merge(w io.Writer, sets []PageSet) error {
	if len(sets) == 0 {
		return fmt.Errorf("nothing to merge")
	}

	readers := make([]io.ReadSeeker, len(sets))
	for i, set := range sets {
		if len(set.Data) == 0 {
			return fmt.Errorf("page set %d (%s) is empty", i, set.Label)
		}
		readers[i] = bytes.NewReader(set.Data)
	}

	if err := api.MergeRaw(readers, w, false, newConfiguration()); err != nil {
		return fmt.Errorf("failed to merge %d page sets: %w", len(sets), err)
	}
	return nil
}

// PageCount returns the number of pages in a PDF
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// PageWidths returns the media box width of every page, in page order
func PageWidths(data []byte) ([]float64, error) {
	dims, err := api.PageDims(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	widths := make([]float64, len(dims))
	for i, d := range dims {
		widths[i] = d.Width
	}
	return widths, nil
}
