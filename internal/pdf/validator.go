// Package pdf validates exhibit attachments and merges fixed-layout page sets.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MIMEType is the content type of a fixed-layout artifact
const MIMEType = "application/pdf"

// Extension is the file extension of a fixed-layout artifact
const Extension = ".pdf"

// Validator checks that attachments are PDFs the merger can consume
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a PDF validator with the given size limit
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// newConfiguration returns the relaxed pdfcpu configuration used for every operation
func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ValidateBytes checks an in-memory attachment
func (v *Validator) ValidateBytes(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("file is empty: %s", name)
	}
	if int64(len(data)) > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return fmt.Errorf("file is not a PDF: %s", name)
	}

	// Readable by a plain reader
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("PDF has no pages: %s", name)
	}

	// Structurally sound enough to merge
	if err := api.Validate(bytes.NewReader(data), newConfiguration()); err != nil {
		return fmt.Errorf("PDF failed validation: %w", err)
	}
	return nil
}

// ReadFile loads a file from disk after checking its extension and the size
// limit against the file info
func (v *Validator) ReadFile(filePath, ext string) ([]byte, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := v.CheckFileInfo(filePath, fileInfo, ext); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	return data, nil
}

// ReadPDF loads an attachment from disk and validates it like ValidateBytes
func (v *Validator) ReadPDF(filePath string) ([]byte, error) {
	data, err := v.ReadFile(filePath, Extension)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateBytes(filepath.Base(filePath), data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateFileInfo performs basic validation on PDF file info without opening it
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	return v.CheckFileInfo(filePath, fileInfo, Extension)
}

// CheckFileInfo rejects directories, other extensions, empty files and files
// over the size limit
func (v *Validator) CheckFileInfo(filePath string, fileInfo os.FileInfo, ext string) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ext) {
		return fmt.Errorf("file is not a %s file: %s", strings.TrimPrefix(ext, "."), filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
