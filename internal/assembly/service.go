// Package assembly runs whole affidavit assemblies: sequencing, composition
// or fixed-layout assembly, and publishing.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/compose"
	"github.com/a3tai/mcp-affidavit/internal/convert"
	"github.com/a3tai/mcp-affidavit/internal/docx"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/fixedlayout"
	"github.com/a3tai/mcp-affidavit/internal/logging"
	"github.com/a3tai/mcp-affidavit/internal/metrics"
	"github.com/a3tai/mcp-affidavit/internal/pdf"
	"github.com/a3tai/mcp-affidavit/internal/publish"
	"github.com/a3tai/mcp-affidavit/internal/templates"
)

// Service handles affidavit assembly by orchestrating the pipeline components
type Service struct {
	name        string
	version     string
	maxFileSize int64
	policy      exhibit.LabelPolicy
	scratchDir  string
	converterID string
	probe       func() error

	templates *templates.Store
	converter convert.Converter
	publisher *publish.Publisher
	validator *pdf.Validator
	stats     *pdf.Stats
	sequencer *exhibit.Sequencer
	composer  *compose.Composer
	assembler *fixedlayout.Assembler
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records runs on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLabelPolicy sets the exhibit label policy
func WithLabelPolicy(p exhibit.LabelPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMaxFileSize limits exhibit attachment size
func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithScratchDir sets where fixed-layout runs stage their files
func WithScratchDir(dir string) Option {
	return func(s *Service) { s.scratchDir = dir }
}

// WithIdentity sets the name and version reported by ServerInfo
func WithIdentity(name, version string) Option {
	return func(s *Service) {
		s.name = name
		s.version = version
	}
}

// WithConverterProbe reports converter availability in ServerInfo
func WithConverterProbe(id string, probe func() error) Option {
	return func(s *Service) {
		s.converterID = id
		s.probe = probe
	}
}

// NewService creates an assembly service. converter should already be
// wrapped in a convert.Bracket.
func NewService(store *templates.Store, converter convert.Converter, publisher *publish.Publisher, opts ...Option) (*Service, error) {
	if store == nil || converter == nil || publisher == nil {
		return nil, errors.New("template store, converter and publisher are required")
	}

	s := &Service{
		name:        "mcp-affidavit",
		version:     "dev",
		maxFileSize: 100 * 1024 * 1024,
		policy:      exhibit.PolicyExtend,
		converterID: "custom",
		templates:   store,
		converter:   converter,
		publisher:   publisher,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.validator = pdf.NewValidator(s.maxFileSize)
	s.stats = pdf.NewStats(s.maxFileSize)
	s.sequencer = exhibit.NewSequencer(s.policy, func(a exhibit.Attachment) error {
		return s.validator.ValidateBytes(a.Name, a.Data)
	})
	s.composer = compose.New(store, compose.WithLogger(s.logger))
	s.assembler = fixedlayout.New(store, converter,
		fixedlayout.WithLogger(s.logger),
		fixedlayout.WithScratchDir(s.scratchDir))

	return s, nil
}

// Metrics returns the collectors the service records on
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Artifacts returns the store published artifacts are served from
func (s *Service) Artifacts() publish.Store { return s.publisher.Store() }

// MaxFileSize returns the attachment size limit
func (s *Service) MaxFileSize() int64 { return s.maxFileSize }

// ReadExhibit loads an exhibit PDF from disk and validates it
func (s *Service) ReadExhibit(path string) (exhibit.Attachment, error) {
	data, err := s.validator.ReadPDF(path)
	if err != nil {
		return exhibit.Attachment{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"cannot load exhibit", err)
	}
	return exhibit.Attachment{Name: filepath.Base(path), Data: data}, nil
}

// ReadUpload loads an edited .docx from disk for ConvertUploaded
func (s *Service) ReadUpload(path string) (exhibit.Attachment, error) {
	data, err := s.validator.ReadFile(path, docx.Extension)
	if err != nil {
		return exhibit.Attachment{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageUpload,
			"cannot load uploaded document", err)
	}
	return exhibit.Attachment{Name: filepath.Base(path), Data: data}, nil
}

// runScope tracks one run for logging and metrics
type runScope struct {
	id     string
	flow   string
	start  time.Time
	logger *zap.Logger
	s      *Service
}

func (s *Service) begin(ctx context.Context, flow string) (context.Context, *runScope) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", id), zap.String("flow", flow))
	logger.Debug("run started")
	return logging.IntoContext(ctx, logger), &runScope{
		id:     id,
		flow:   flow,
		start:  time.Now(),
		logger: logger,
		s:      s,
	}
}

func (r *runScope) finish(err error, fields ...zap.Field) {
	elapsed := time.Since(r.start)
	r.s.metrics.RunDuration.WithLabelValues(r.flow).Observe(elapsed.Seconds())

	if err == nil {
		r.s.metrics.Runs.WithLabelValues(r.flow, metrics.OutcomeSuccess).Inc()
		r.logger.Info("run completed", append(fields, zap.Duration("elapsed", elapsed))...)
		return
	}

	r.s.metrics.Runs.WithLabelValues(r.flow, metrics.OutcomeFailure).Inc()
	failure := []zap.Field{zap.Duration("elapsed", elapsed), zap.Error(err)}
	var ae *aerrors.AssemblyError
	if errors.As(err, &ae) {
		failure = append(failure,
			zap.String("type", ae.Type.String()),
			zap.String("stage", string(ae.Stage)),
			zap.Int("exhibit", ae.EntryIndex))
	}
	r.logger.Error("run failed", failure...)
}

// sequence labels the exhibits and validates every attachment
func (s *Service) sequence(exhibits []exhibit.Attachment) ([]exhibit.ManifestEntry, []ManifestItem, error) {
	entries, err := s.sequencer.Sequence(exhibits)
	if err != nil {
		return nil, nil, err
	}
	items := make([]ManifestItem, len(entries))
	for i, e := range entries {
		items[i] = ManifestItem{
			Index:  e.SequenceIndex,
			Letter: e.Letter,
			Name:   e.Source.Name,
			Size:   len(e.Source.Data),
		}
	}
	return entries, items, nil
}

// ComposeDocx builds and publishes the editable composite
func (s *Service) ComposeDocx(ctx context.Context, req Request) (result *ComposeResult, err error) {
	ctx, run := s.begin(ctx, metrics.FlowCompose)
	defer func() {
		if result != nil {
			run.finish(err, zap.String("artifact_id", result.Artifact.ID), zap.Int("exhibits", len(result.Manifest)))
			return
		}
		run.finish(err)
	}()
	return s.composeDocx(ctx, run.id, req)
}

func (s *Service) composeDocx(ctx context.Context, runID string, req Request) (*ComposeResult, error) {
	if err := req.Record.Validate(); err != nil {
		return nil, err
	}
	entries, items, err := s.sequence(req.Exhibits)
	if err != nil {
		return nil, err
	}

	composite, err := s.composer.Compose(ctx, req.Record, entries)
	if err != nil {
		return nil, err
	}

	artifact, err := s.publish(ctx, publish.EditableName(req.Record.SubjectName, docx.Extension), docx.MIMEType, composite.Data)
	if err != nil {
		return nil, err
	}

	return &ComposeResult{
		RunID:    runID,
		Artifact: artifact,
		Manifest: items,
		Sections: composite.Sections,
		Elements: composite.Elements,
	}, nil
}

// AssemblePDF builds and publishes the fixed-layout composite
func (s *Service) AssemblePDF(ctx context.Context, req Request) (result *PDFResult, err error) {
	ctx, run := s.begin(ctx, metrics.FlowPDF)
	defer func() { run.finishPDF(result, err) }()

	if err := req.Record.Validate(); err != nil {
		return nil, err
	}
	entries, items, err := s.sequence(req.Exhibits)
	if err != nil {
		return nil, err
	}
	stream, err := s.assembler.Assemble(ctx, req.Record, entries)
	if err != nil {
		return nil, err
	}
	return s.publishStream(ctx, run.id, stream, items)
}

// ConvertUploaded assembles the fixed-layout composite with an uploaded
// editable document in place of the rendered cover affidavit
func (s *Service) ConvertUploaded(ctx context.Context, req ConvertRequest) (result *PDFResult, err error) {
	ctx, run := s.begin(ctx, metrics.FlowConvert)
	defer func() { run.finishPDF(result, err) }()

	if len(req.Upload.Data) == 0 {
		return nil, aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageUpload, "no document uploaded")
	}
	if int64(len(req.Upload.Data)) > s.maxFileSize {
		return nil, aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageUpload,
			fmt.Sprintf("uploaded document is %d bytes, limit is %d", len(req.Upload.Data), s.maxFileSize))
	}
	if err := req.Record.Validate(); err != nil {
		return nil, err
	}
	entries, items, err := s.sequence(req.Exhibits)
	if err != nil {
		return nil, err
	}
	stream, err := s.assembler.AssembleUploaded(ctx, req.Record, req.Upload, entries)
	if err != nil {
		return nil, err
	}
	return s.publishStream(ctx, run.id, stream, items)
}

func (r *runScope) finishPDF(result *PDFResult, err error) {
	if result != nil {
		r.finish(err,
			zap.String("artifact_id", result.Artifact.ID),
			zap.Int("exhibits", len(result.Manifest)),
			zap.Int("pages", result.Pages))
		return
	}
	r.finish(err)
}

// Generate publishes the editable composite and then the fixed-layout one.
// The editable artifact stays published when the fixed-layout run fails.
func (s *Service) Generate(ctx context.Context, req Request) (*GenerateResult, error) {
	docxResult, err := s.ComposeDocx(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &GenerateResult{Docx: docxResult}

	pdfResult, err := s.AssemblePDF(ctx, req)
	if err != nil {
		result.PDFError = err.Error()
		return result, nil
	}
	result.PDF = pdfResult
	return result, nil
}

func (s *Service) publishStream(ctx context.Context, runID string, stream *fixedlayout.PageStream, items []ManifestItem) (*PDFResult, error) {
	stats, err := s.stats.BytesStats(stream.Data)
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("could not read merged output statistics", zap.Error(err))
		stats = nil
	}

	artifact, err := s.publish(ctx, publish.FixedLayoutName, pdf.MIMEType, stream.Data)
	if err != nil {
		return nil, err
	}
	if artifact.Path != "" {
		fileStats, err := s.stats.FileStats(artifact.Path)
		if err != nil {
			logging.FromContext(ctx, s.logger).Warn("could not read written artifact statistics",
				zap.String("path", artifact.Path), zap.Error(err))
		} else {
			stats = fileStats
		}
	}

	return &PDFResult{
		RunID:    runID,
		Artifact: artifact,
		Manifest: items,
		Sections: stream.Sections,
		Pages:    stream.Pages,
		Stats:    stats,
	}, nil
}

func (s *Service) publish(ctx context.Context, name, contentType string, data []byte) (*publish.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StagePublish, "run cancelled before publishing", err)
	}
	artifact, err := s.publisher.Publish(ctx, name, contentType, data)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, aerrors.StagePublish, "failed to publish "+name, err)
	}
	s.metrics.ArtifactsPublished.WithLabelValues(contentKind(contentType)).Inc()
	return artifact, nil
}

func contentKind(contentType string) string {
	switch contentType {
	case docx.MIMEType:
		return "docx"
	case pdf.MIMEType:
		return "pdf"
	default:
		return "other"
	}
}

// ServerInfo reports templates, converter and limits
func (s *Service) ServerInfo() *ServerInfo {
	info := &ServerInfo{
		Name:          s.name,
		Version:       s.version,
		TemplateDir:   s.templates.Dir(),
		Templates:     s.templates.Check(),
		TemplateCache: s.templates.Stats(),
		LabelPolicy:   s.sequencer.Policy(),
		MaxFileSize:   s.maxFileSize,
		Converter:     s.converterID,
		Store:         fmt.Sprint(s.publisher.Store()),
		Outputs: map[string]string{
			"editable":     "{subject_name}" + publish.EditableSuffix + docx.Extension,
			"fixed_layout": publish.FixedLayoutName,
		},
	}
	if s.probe != nil {
		if err := s.probe(); err != nil {
			info.ConverterError = err.Error()
		} else {
			info.ConverterAvailable = true
		}
	} else {
		info.ConverterAvailable = true
	}
	return info
}
