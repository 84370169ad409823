package convert

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultBinary is the LibreOffice executable looked up on PATH
const DefaultBinary = "soffice"

// waitDelay bounds how long Convert waits for output pipes after the
// process group has been killed
const waitDelay = 2 * time.Second

// Profile is a throwaway LibreOffice user installation. A running office
// process locks its profile, so each conversion gets a fresh one.
type Profile struct {
	base string

	mu  sync.Mutex
	dir string
}

// NewProfile creates profiles under base (the system temp dir when empty)
func NewProfile(base string) *Profile {
	return &Profile{base: base}
}

// Acquire creates a new profile directory
func (p *Profile) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir != "" {
		return errors.New("office profile already in use")
	}
	if p.base != "" {
		if err := os.MkdirAll(p.base, 0o750); err != nil {
			return fmt.Errorf("failed to create profile base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(p.base, "office-profile-")
	if err != nil {
		return fmt.Errorf("failed to create office profile: %w", err)
	}
	p.dir = dir
	return nil
}

// Release deletes the profile directory
func (p *Profile) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == "" {
		return nil
	}
	err := os.RemoveAll(p.dir)
	p.dir = ""
	if err != nil {
		return fmt.Errorf("failed to remove office profile: %w", err)
	}
	return nil
}

// url returns the profile as a UserInstallation URL
func (p *Profile) url() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == "" {
		return "", errors.New("office profile not acquired")
	}
	abs, err := filepath.Abs(p.dir)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Office converts with a headless LibreOffice
type Office struct {
	binary  string
	profile *Profile
}

// NewOffice creates a LibreOffice converter. The profile must be acquired
// around each Convert call, which Bracket does.
func NewOffice(binary string, profile *Profile) *Office {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Office{binary: binary, profile: profile}
}

// Binary returns the configured executable
func (o *Office) Binary() string { return o.binary }

// Available reports whether the executable can be found
func (o *Office) Available() error {
	_, err := exec.LookPath(o.binary)
	return err
}

// Convert runs soffice --convert-to pdf
func (o *Office) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	profileURL, err := o.profile.url()
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, o.binary,
		"--headless",
		"--norestore",
		"--nolockcheck",
		"-env:UserInstallation="+profileURL,
		"--convert-to", "pdf",
		"--outdir", outDir,
		docxPath,
	)
	killGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%s failed: %w: %s", o.binary, err, strings.TrimSpace(string(output)))
	}

	stem := strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))
	pdfPath := filepath.Join(outDir, stem+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("%s produced no output for %s: %s", o.binary, filepath.Base(docxPath),
			strings.TrimSpace(string(output)))
	}
	return pdfPath, nil
}
