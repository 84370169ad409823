package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/docx"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/security"
)

// Renderer turns a typed context into a new, independent document
type Renderer interface {
	Render(ctx context.Context, c casefile.Context) (*docx.Document, error)
}

// Store serves templates from a directory. Template files are never written;
// every render parses a fresh document from the cached bytes.
type Store struct {
	dir      string
	manifest Manifest
	guard    *security.PathGuard
	cache    *byteCache
	logger   *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCacheBytes bounds the template byte cache
func WithCacheBytes(n int64) Option {
	return func(s *Store) { s.cache = newByteCache(n) }
}

// WithManifest replaces the manifest read from the directory
func WithManifest(m Manifest) Option {
	return func(s *Store) { s.manifest = m }
}

// NewStore opens the template directory and reads its manifest
func NewStore(dir string, opts ...Option) (*Store, error) {
	guard, err := security.NewPathGuard(dir, "template")
	if err != nil {
		return nil, err
	}
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:      dir,
		manifest: manifest,
		guard:    guard,
		cache:    newByteCache(DefaultCacheBytes),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the template directory
func (s *Store) Dir() string { return s.dir }

// Manifest returns the templates the store serves
func (s *Store) Manifest() Manifest { return s.manifest }

// Stats returns cache statistics
func (s *Store) Stats() CacheStats { return s.cache.snapshot() }

// Load returns the raw bytes of a template
func (s *Store) Load(id string) ([]byte, error) {
	spec, ok := s.manifest.Lookup(id)
	if !ok {
		return nil, aerrors.New(aerrors.ErrorTypeTemplateNotFound, "", fmt.Sprintf("unknown template %q", id))
	}

	path, err := s.guard.Resolve(spec.File)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, "", fmt.Sprintf("template %s has an invalid path", id), err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		e := aerrors.Wrap(aerrors.ErrorTypeTemplateNotFound, "", fmt.Sprintf("template %s file %q not found", id, spec.File), err)
		e.Template = id
		return nil, e
	}
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, "", fmt.Sprintf("cannot access template %s", id), err)
	}

	if data, ok := s.cache.get(id, info.ModTime()); ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrorTypeIOFailure, "", fmt.Sprintf("failed to read template %s", id), err)
	}
	s.cache.put(id, info.ModTime(), data)
	s.logger.Debug("template loaded", zap.String("template", id), zap.Int("bytes", len(data)))
	return data, nil
}

// Render renders the template named by c with c's placeholders
func (s *Store) Render(ctx context.Context, c casefile.Context) (*docx.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := c.TemplateID()
	data, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Open(data)
	if err != nil {
		e := aerrors.Wrap(aerrors.ErrorTypeIOFailure, "", fmt.Sprintf("template %s is not a readable document", id), err)
		e.Template = id
		return nil, e
	}

	if err := doc.Render(c.Placeholders()); err != nil {
		var missing *docx.MissingError
		if errors.As(err, &missing) {
			return nil, aerrors.MissingPlaceholder(id, missing.Names)
		}
		var unsupported *docx.UnsupportedTagError
		if errors.As(err, &unsupported) {
			e := aerrors.Wrap(aerrors.ErrorTypeInvalidInput, "",
				fmt.Sprintf("template %s uses tags other than {{ name }} placeholders", id), err)
			e.Template = id
			return nil, e
		}
		e := aerrors.Wrap(aerrors.ErrorTypeIOFailure, "", fmt.Sprintf("failed to render template %s", id), err)
		e.Template = id
		return nil, e
	}
	return doc, nil
}

// Status describes whether a template can be rendered
type Status struct {
	Spec
	Available  bool     `json:"available"`
	Referenced []string `json:"referenced,omitempty"`
	Undeclared []string `json:"undeclared,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Check opens every template and compares the placeholders it references
// with the ones the manifest declares
func (s *Store) Check() []Status {
	out := make([]Status, 0, len(s.manifest.Templates))
	for _, spec := range s.manifest.Templates {
		st := Status{Spec: spec}
		data, err := s.Load(spec.ID)
		if err != nil {
			st.Error = err.Error()
			out = append(out, st)
			continue
		}
		doc, err := docx.Open(data)
		if err != nil {
			st.Error = err.Error()
			out = append(out, st)
			continue
		}
		referenced, err := doc.Placeholders()
		if err != nil {
			st.Error = err.Error()
			out = append(out, st)
			continue
		}
		if tags, err := doc.UnsupportedTags(); err == nil && len(tags) > 0 {
			st.Error = (&docx.UnsupportedTagError{Tags: tags}).Error()
			out = append(out, st)
			continue
		}

		declared := make(map[string]bool, len(spec.Placeholders))
		for _, name := range spec.Placeholders {
			declared[name] = true
		}
		for _, name := range referenced {
			if !declared[name] {
				st.Undeclared = append(st.Undeclared, name)
			}
		}
		sort.Strings(st.Undeclared)
		st.Available = true
		st.Referenced = referenced
		out = append(out, st)
	}
	return out
}
