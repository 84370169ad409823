// Package scratch provides run-scoped working directories.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Run is the scratch directory of one assembly run. Everything written
// through it is removed by Close.
type Run struct {
	id  string
	dir string

	mu     sync.Mutex
	closed bool
}

// New creates run-<uuid> under base (the system temp dir when empty)
func New(base string) (*Run, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create scratch base %s: %w", base, err)
	}

	id := uuid.NewString()
	dir := filepath.Join(base, "run-"+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Run{id: id, dir: dir}, nil
}

// ID identifies the run
func (r *Run) ID() string { return r.id }

// Dir is the run directory
func (r *Run) Dir() string { return r.dir }

// Path returns the location of name inside the run directory
func (r *Run) Path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid scratch name %q", name)
	}
	return filepath.Join(r.dir, clean), nil
}

// Write stores data under name and returns its path
func (r *Run) Write(name string, data []byte) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	path, err := r.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// Mkdir creates a subdirectory and returns its path
func (r *Run) Mkdir(name string) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	path, err := r.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	return path, nil
}

// Read returns the content of a file inside the run directory
func (r *Run) Read(path string) ([]byte, error) {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s is outside the run directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// Close removes the run directory. It is safe to call more than once.
func (r *Run) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

func (r *Run) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("run %s already closed", r.id)
	}
	return nil
}
