// Package security keeps file access inside configured directories.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathGuard resolves file names against one directory and rejects anything
// that escapes it
type PathGuard struct {
	dir  string
	what string
}

// NewPathGuard guards dir. what names the directory in error messages,
// e.g. "template".
func NewPathGuard(dir, what string) (*PathGuard, error) {
	if dir == "" {
		return nil, fmt.Errorf("%s directory cannot be empty", what)
	}
	return &PathGuard{dir: dir, what: what}, nil
}

// Dir returns the guarded directory
func (g *PathGuard) Dir() string { return g.dir }

// Resolve returns the absolute path of file, rejecting names that escape the
// directory directly or through a symlink. Relative names are joined to the
// directory.
func (g *PathGuard) Resolve(file string) (string, error) {
	file = strings.ReplaceAll(file, "\x00", "")
	if file == "" {
		return "", fmt.Errorf("%s file name cannot be empty", g.what)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(g.dir, file)
	}

	absPath, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(g.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s directory: %w", g.what, err)
	}

	if !Within(absPath, absDir) {
		return "", fmt.Errorf("path is outside %s directory: %s", g.what, file)
	}

	// Symlinks are followed on both sides before comparing again
	realDir := absDir
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		realDir = resolved
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve symlink: %w", err)
		}
		if !Within(resolved, realDir) && !Within(resolved, absDir) {
			return "", fmt.Errorf("path is outside %s directory: %s", g.what, file)
		}
	}

	return absPath, nil
}

// Within reports whether path lies strictly below dir
func Within(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if path == dir {
		return false
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
