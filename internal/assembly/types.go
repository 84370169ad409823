package assembly

import (
	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/compose"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/fixedlayout"
	"github.com/a3tai/mcp-affidavit/internal/pdf"
	"github.com/a3tai/mcp-affidavit/internal/publish"
	"github.com/a3tai/mcp-affidavit/internal/templates"
)

// Request Types

// Request is a case record plus its exhibit attachments in upload order
type Request struct {
	Record   casefile.CaseRecord  `json:"record"`
	Exhibits []exhibit.Attachment `json:"-"`
}

// ConvertRequest replaces the rendered cover affidavit with an uploaded
// editable document
type ConvertRequest struct {
	Request
	Upload exhibit.Attachment `json:"-"`
}

// Response Types

// ManifestItem describes one labelled exhibit
type ManifestItem struct {
	Index  int    `json:"index"`
	Letter string `json:"letter"`
	Name   string `json:"name"`
	Size   int    `json:"size"`
}

// ComposeResult is the outcome of building the editable composite
type ComposeResult struct {
	RunID    string            `json:"run_id"`
	Artifact *publish.Artifact `json:"artifact"`
	Manifest []ManifestItem    `json:"manifest"`
	Sections []compose.Section `json:"sections"`
	Elements int               `json:"elements"`
}

// PDFResult is the outcome of building the fixed-layout composite
type PDFResult struct {
	RunID    string                `json:"run_id"`
	Artifact *publish.Artifact     `json:"artifact"`
	Manifest []ManifestItem        `json:"manifest"`
	Sections []fixedlayout.Section `json:"sections"`
	Pages    int                   `json:"pages"`
	Stats    *pdf.FileStats        `json:"stats,omitempty"`
}

// GenerateResult carries both artifacts. A failed fixed-layout run leaves the
// editable artifact published and is reported in PDFError.
type GenerateResult struct {
	Docx     *ComposeResult `json:"docx"`
	PDF      *PDFResult     `json:"pdf,omitempty"`
	PDFError string         `json:"pdf_error,omitempty"`
}

// ServerInfo describes the running assembler
type ServerInfo struct {
	Name               string               `json:"name"`
	Version            string               `json:"version"`
	TemplateDir        string               `json:"template_dir"`
	Templates          []templates.Status   `json:"templates"`
	TemplateCache      templates.CacheStats `json:"template_cache"`
	LabelPolicy        exhibit.LabelPolicy  `json:"label_policy"`
	MaxFileSize        int64                `json:"max_file_size"`
	Converter          string               `json:"converter"`
	ConverterAvailable bool                 `json:"converter_available"`
	ConverterError     string               `json:"converter_error,omitempty"`
	Store              string               `json:"store"`
	Outputs            map[string]string    `json:"outputs"`
}
