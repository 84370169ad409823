// Package publish names finished artifacts, stores them for download and
// serves them over HTTP.
package publish

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// Artifact file names
const (
	EditableSuffix  = "_affidavit_with_exhibits"
	FixedLayoutName = "affidavit_with_exhibits.pdf"
)

// ErrNotFound is returned for unknown or expired artifacts
var ErrNotFound = errors.New("artifact not found")

// Artifact is a finished, downloadable output
type Artifact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Path        string    `json:"path,omitempty"`
	URL         string    `json:"url,omitempty"`
	Data        []byte    `json:"-"`
}

// Store keeps artifacts for later download
type Store interface {
	Put(ctx context.Context, a Artifact) error
	Get(ctx context.Context, id string) (Artifact, error)
	Close() error
}

// EditableName returns the editable composite file name for a subject,
// e.g. "JANE DOE_affidavit_with_exhibits.docx"
func EditableName(subject, ext string) string {
	return SafeName(subject) + EditableSuffix + ext
}

// SafeName strips characters that are unsafe in a file name. Letters,
// digits, spaces, dots, dashes and underscores are kept.
func SafeName(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
	mapped = strings.Trim(mapped, ". ")
	if mapped == "" {
		return "affidavit"
	}
	return mapped
}
