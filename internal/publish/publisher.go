package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher hands finished artifacts to callers. Data is passed through
// unchanged; only a name and content type are attached.
type Publisher struct {
	store     Store
	outputDir string
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Publisher
type Option func(*Publisher)

// WithOutputDir also writes every artifact to dir
func WithOutputDir(dir string) Option {
	return func(p *Publisher) { p.outputDir = dir }
}

// WithBaseURL sets the URL prefix download links are built from
func WithBaseURL(u string) Option {
	return func(p *Publisher) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the publisher logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a publisher backed by store
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the artifact store
func (p *Publisher) Store() Store { return p.store }

// Publish stores data under name
func (p *Publisher) Publish(ctx context.Context, name, contentType string, data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("refusing to publish empty artifact %s", name)
	}

	a := Artifact{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		CreatedAt:   p.now().UTC(),
		Data:        data,
	}
	if p.baseURL != "" {
		a.URL = p.baseURL + ArtifactPath + a.ID
	}

	if p.outputDir != "" {
		path, err := p.writeFile(name, data)
		if err != nil {
			return nil, err
		}
		a.Path = path
	}

	if err := p.store.Put(ctx, a); err != nil {
		if a.Path != "" {
			_ = os.Remove(a.Path)
		}
		return nil, err
	}

	p.logger.Info("artifact published",
		zap.String("artifact_id", a.ID),
		zap.String("name", a.Name),
		zap.Int("bytes", a.Size))
	return &a, nil
}

// writeFile writes through a temporary file so a reader never sees a partial artifact
func (p *Publisher) writeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(p.outputDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	final := filepath.Join(p.outputDir, SafeName(name))

	tmp, err := os.CreateTemp(p.outputDir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize output file: %w", err)
	}
	return final, nil
}
