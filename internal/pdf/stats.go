package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FileStats describes a fixed-layout artifact
type FileStats struct {
	Path         string `json:"path,omitempty"`
	Size         int64  `json:"size"`
	Pages        int    `json:"pages"`
	CreatedDate  string `json:"created_date,omitempty"`
	ModifiedDate string `json:"modified_date,omitempty"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Producer     string `json:"producer,omitempty"`
}

// Stats handles PDF statistics operations
type Stats struct {
	validator *Validator
}

// NewStats creates a PDF stats analyzer with the specified constraints
func NewStats(maxFileSize int64) *Stats {
	return &Stats{
		validator: NewValidator(maxFileSize),
	}
}

// FileStats returns statistics about a PDF on disk
func (s *Stats) FileStats(path string) (*FileStats, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := s.validator.ValidateFileInfo(path, fileInfo); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	result, err := s.BytesStats(data)
	if err != nil {
		return nil, err
	}
	result.Path = path
	result.ModifiedDate = fileInfo.ModTime().Format("2006-01-02 15:04:05")
	return result, nil
}

// BytesStats returns statistics about an in-memory PDF
func (s *Stats) BytesStats(data []byte) (*FileStats, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	result := &FileStats{
		Size:  int64(len(data)),
		Pages: r.NumPage(),
	}
	s.extractMetadata(r, result)
	return result, nil
}

// extractMetadata copies the document info dictionary into result
func (s *Stats) extractMetadata(r *pdf.Reader, result *FileStats) {
	defer func() {
		// Metadata is optional; a malformed info dictionary leaves the basic stats
		_ = recover()
	}()

	trailer := r.Trailer()
	if trailer.IsNull() {
		return
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return
	}

	text := func(key string) string {
		if v := info.Key(key); !v.IsNull() {
			return strings.TrimSpace(v.Text())
		}
		return ""
	}
	result.Title = text("Title")
	result.Author = text("Author")
	result.Producer = text("Producer")
	result.CreatedDate = text("CreationDate")
}
