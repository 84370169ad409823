// Package compose concatenates rendered sections into one editable composite.
package compose

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/docx"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/logging"
	"github.com/a3tai/mcp-affidavit/internal/templates"
)

// Section records what one rendered template contributed to the composite
type Section struct {
	Template string `json:"template"`
	Letter   string `json:"letter,omitempty"`
	Elements int    `json:"elements"`
}

// Composite is the finished editable document
type Composite struct {
	Data     []byte    `json:"-"`
	Sections []Section `json:"sections"`
	Elements int       `json:"elements"`
	Margins  []docx.Margins
}

// Composer renders and concatenates the affidavit sections
type Composer struct {
	renderer templates.Renderer
	margins  docx.Margins
	logger   *zap.Logger
}

// Option configures a Composer
type Option func(*Composer)

// WithLogger sets the composer logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// WithMargins overrides the uniform page margins
func WithMargins(m docx.Margins) Option {
	return func(c *Composer) { c.margins = m }
}

// New creates a composer with one-inch margins
func New(renderer templates.Renderer, opts ...Option) *Composer {
	c := &Composer{
		renderer: renderer,
		margins:  docx.Uniform(docx.TwipsPerInch),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds cover + one cover sheet per manifest entry + closing, then
// applies the uniform margins once to every section. Any failure discards
// the partial composite.
func (c *Composer) Compose(ctx context.Context, record casefile.CaseRecord, entries []exhibit.ManifestEntry) (*Composite, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	result := &Composite{}

	composite, err := c.render(ctx, record.Cover(), aerrors.StageCover, -1)
	if err != nil {
		return nil, err
	}
	result.Sections = append(result.Sections, Section{Template: casefile.TemplateCover, Elements: composite.BodyLen()})

	for _, entry := range entries {
		sheet, err := c.render(ctx, record.ExhibitSheet(entry.Letter), aerrors.StageExhibit, entry.SequenceIndex)
		if err != nil {
			return nil, err
		}
		elements := sheet.BodyLen()
		if err := composite.Append(sheet); err != nil {
			return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageCompose,
				"failed to append exhibit cover sheet", err).WithEntry(entry.SequenceIndex)
		}
		result.Sections = append(result.Sections, Section{
			Template: casefile.TemplateExhibit,
			Letter:   entry.Letter,
			Elements: elements,
		})
	}

	closing, err := c.render(ctx, record.Closing(), aerrors.StageClosing, -1)
	if err != nil {
		return nil, err
	}
	elements := closing.BodyLen()
	if err := composite.Append(closing); err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageCompose, "failed to append closing section", err)
	}
	result.Sections = append(result.Sections, Section{Template: casefile.TemplateClosing, Elements: elements})

	composite.SetMargins(c.margins)

	data, err := composite.Bytes()
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StageCompose, "failed to serialize composite", err)
	}

	result.Data = data
	result.Elements = composite.BodyLen()
	result.Margins = composite.SectionMargins()

	logging.FromContext(ctx, c.logger).Debug("composed document",
		zap.Int("exhibits", len(entries)),
		zap.Int("elements", result.Elements),
		zap.Int("bytes", len(data)))
	return result, nil
}

func (c *Composer) render(ctx context.Context, tc casefile.Context, stage aerrors.Stage, entry int) (*docx.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, stage, "composition cancelled", err).WithEntry(entry)
	}
	doc, err := c.renderer.Render(ctx, tc)
	if err != nil {
		return nil, aerrors.At(err, stage, entry)
	}
	logging.FromContext(ctx, c.logger).Debug("rendered section",
		zap.String("template", tc.TemplateID()),
		zap.String("stage", string(stage)),
		zap.Int("exhibit", entry))
	return doc, nil
}

// String summarizes the section layout, e.g. "cover(9) a(5) closing(6)"
func (r *Composite) String() string {
	s := ""
	for i, sec := range r.Sections {
		if i > 0 {
			s += " "
		}
		name := sec.Template
		switch sec.Template {
		case casefile.TemplateCover:
			name = "cover"
		case casefile.TemplateExhibit:
			name = sec.Letter
		case casefile.TemplateClosing:
			name = "closing"
		}
		s += fmt.Sprintf("%s(%d)", name, sec.Elements)
	}
	return s
}
