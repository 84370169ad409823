// Package fixedlayout converts each affidavit section to PDF on its own and
// merges the page sets with the exhibit attachments in manifest order.
package fixedlayout

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/convert"
	"github.com/a3tai/mcp-affidavit/internal/docx"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/logging"
	"github.com/a3tai/mcp-affidavit/internal/pdf"
	"github.com/a3tai/mcp-affidavit/internal/scratch"
	"github.com/a3tai/mcp-affidavit/internal/templates"
)

// Section kinds
const (
	KindCover      = "cover"
	KindUpload     = "upload"
	KindSheet      = "exhibit_sheet"
	KindAttachment = "exhibit_attachment"
	KindClosing    = "closing"
)

// Section is one page set of the stream
type Section struct {
	Kind   string `json:"kind"`
	Letter string `json:"letter,omitempty"`
	Name   string `json:"name,omitempty"`
	Pages  int    `json:"pages"`
}

// PageStream is the merged fixed-layout output
type PageStream struct {
	Data     []byte    `json:"-"`
	Sections []Section `json:"sections"`
	Pages    int       `json:"pages"`
}

// Assembler builds page streams. Every conversion goes through the converter
// it is given, which is expected to be a convert.Bracket.
type Assembler struct {
	renderer    templates.Renderer
	converter   convert.Converter
	merger      *pdf.Merger
	scratchBase string
	logger      *zap.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithLogger sets the assembler logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// WithScratchDir sets where run directories are created
func WithScratchDir(dir string) Option {
	return func(a *Assembler) { a.scratchBase = dir }
}

// New creates an assembler
func New(renderer templates.Renderer, converter convert.Converter, opts ...Option) *Assembler {
	a := &Assembler{
		renderer:  renderer,
		converter: converter,
		merger:    pdf.NewMerger(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble produces cover pages, then per exhibit its cover sheet pages and
// the attachment verbatim, then closing pages
func (a *Assembler) Assemble(ctx context.Context, record casefile.CaseRecord, entries []exhibit.ManifestEntry) (*PageStream, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return a.run(ctx, record, entries, func(r *runState) error {
		doc, err := a.renderer.Render(ctx, record.Cover())
		if err != nil {
			return aerrors.At(err, aerrors.StageCover, -1)
		}
		return r.convertDocument(ctx, doc, "00-cover", Section{Kind: KindCover}, aerrors.StageCover, -1)
	})
}

// AssembleUploaded is Assemble with an uploaded editable document in place of
// the rendered cover affidavit
func (a *Assembler) AssembleUploaded(ctx context.Context, record casefile.CaseRecord, upload exhibit.Attachment, entries []exhibit.ManifestEntry) (*PageStream, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if _, err := docx.Open(upload.Data); err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageUpload,
			fmt.Sprintf("uploaded file %q is not an editable document", upload.Name), err)
	}
	return a.run(ctx, record, entries, func(r *runState) error {
		return r.convertBytes(ctx, upload.Data, "00-upload", Section{Kind: KindUpload, Name: upload.Name}, aerrors.StageUpload, -1)
	})
}

// runState collects page sets for one run
type runState struct {
	a      *Assembler
	run    *scratch.Run
	outDir string
	sets   []pdf.PageSet
	stream *PageStream
}

func (a *Assembler) run(ctx context.Context, record casefile.CaseRecord, entries []exhibit.ManifestEntry, lead func(*runState) error) (*PageStream, error) {
	run, err := scratch.New(a.scratchBase)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageScratch, "failed to create run directory", err)
	}
	defer func() {
		if err := run.Close(); err != nil {
			logging.FromContext(ctx, a.logger).Error("failed to clean up run directory", zap.String("dir", run.Dir()), zap.Error(err))
		}
	}()

	outDir, err := run.Mkdir("pdf")
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageScratch, "failed to create output directory", err)
	}

	r := &runState{a: a, run: run, outDir: outDir, stream: &PageStream{}}

	if err := lead(r); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		doc, err := a.renderer.Render(ctx, record.ExhibitSheet(entry.UpperLetter()))
		if err != nil {
			return nil, aerrors.At(err, aerrors.StageExhibit, entry.SequenceIndex)
		}
		name := fmt.Sprintf("%02d-exhibit-%s", entry.SequenceIndex+1, entry.Letter)
		if err := r.convertDocument(ctx, doc, name, Section{Kind: KindSheet, Letter: entry.UpperLetter()},
			aerrors.StageExhibit, entry.SequenceIndex); err != nil {
			return nil, err
		}
		if err := r.addAttachment(entry); err != nil {
			return nil, err
		}
	}

	doc, err := a.renderer.Render(ctx, record.Closing())
	if err != nil {
		return nil, aerrors.At(err, aerrors.StageClosing, -1)
	}
	if err := r.convertDocument(ctx, doc, "99-closing", Section{Kind: KindClosing}, aerrors.StageClosing, -1); err != nil {
		return nil, err
	}

	return r.merge()
}

func (r *runState) convertDocument(ctx context.Context, doc *docx.Document, name string, sec Section, stage aerrors.Stage, entry int) error {
	data, err := doc.Bytes()
	if err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeIOFailure, stage, "failed to serialize section", err).WithEntry(entry)
	}
	return r.convertBytes(ctx, data, name, sec, stage, entry)
}

func (r *runState) convertBytes(ctx context.Context, data []byte, name string, sec Section, stage aerrors.Stage, entry int) error {
	if err := ctx.Err(); err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeConversionFailure, stage, "assembly cancelled", err).WithEntry(entry)
	}

	docxPath, err := r.run.Write(name+docx.Extension, data)
	if err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageScratch, "failed to stage section", err).WithEntry(entry)
	}

	pdfPath, err := r.a.converter.Convert(ctx, docxPath, r.outDir)
	if err != nil {
		if aerrors.TypeOf(err) == aerrors.ErrorTypeUnknown {
			return aerrors.Wrap(aerrors.ErrorTypeConversionFailure, stage, "converter failed", err).WithEntry(entry)
		}
		return aerrors.At(err, stage, entry)
	}

	pages, err := r.run.Read(pdfPath)
	if err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeConversionFailure, stage, "converter output unreadable", err).WithEntry(entry)
	}
	count, err := pdf.PageCount(pages)
	if err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeConversionFailure, stage, "converter produced an invalid PDF", err).WithEntry(entry)
	}

	sec.Pages = count
	r.add(name, pages, sec)
	logging.FromContext(ctx, r.a.logger).Debug("converted section",
		zap.String("section", name),
		zap.String("stage", string(stage)),
		zap.Int("pages", count))
	return nil
}

func (r *runState) addAttachment(entry exhibit.ManifestEntry) error {
	count, err := pdf.PageCount(entry.Source.Data)
	if err != nil {
		return aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageExhibit,
			fmt.Sprintf("exhibit %q is not a readable PDF", entry.Source.Name), err).WithEntry(entry.SequenceIndex)
	}
	r.add("exhibit "+entry.Letter, entry.Source.Data, Section{
		Kind:   KindAttachment,
		Letter: entry.UpperLetter(),
		Name:   entry.Source.Name,
		Pages:  count,
	})
	return nil
}

func (r *runState) add(label string, data []byte, sec Section) {
	r.sets = append(r.sets, pdf.PageSet{Label: label, Data: data})
	r.stream.Sections = append(r.stream.Sections, sec)
	r.stream.Pages += sec.Pages
}

func (r *runState) merge() (*PageStream, error) {
	var buf bytes.Buffer
	if err := r.a.merger.Merge(&buf, r.sets); err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeMergeFailure, aerrors.StageMerge, "failed to merge page sets", err)
	}

	merged, err := pdf.PageCount(buf.Bytes())
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeMergeFailure, aerrors.StageMerge, "merged output unreadable", err)
	}
	if merged != r.stream.Pages {
		return nil, aerrors.New(aerrors.ErrorTypeMergeFailure, aerrors.StageMerge,
			fmt.Sprintf("merged output has %d pages, expected %d", merged, r.stream.Pages))
	}

	r.stream.Data = buf.Bytes()
	return r.stream, nil
}
