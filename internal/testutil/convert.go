package testutil

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var pagesMarker = regexp.MustCompile(`\[\[pages=([0-9]+)(?:,width=([0-9]+))?\]\]`)

// PagesMarker is text a template can carry to tell FakeConvert how many
// pages, and of which width, the converted PDF should have
func PagesMarker(pages, width int) string {
	return fmt.Sprintf("[[pages=%d,width=%d]]", pages, width)
}

// FakeConvert stands in for an office converter: it writes outDir/<stem>.pdf
// whose page count and width come from markers in the document. Markers in
// several sections add up; a document without markers becomes one
// 612-point page.
func FakeConvert(ctx context.Context, docxPath, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(docxPath)
	if err != nil {
		return "", err
	}
	text, err := documentXML(data)
	if err != nil {
		return "", err
	}

	pages, width := 0, 612
	for _, m := range pagesMarker.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		pages += n
		if m[2] != "" {
			width, _ = strconv.Atoi(m[2])
		}
	}
	if pages == 0 {
		pages = 1
	}

	stem := strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))
	out := filepath.Join(outDir, stem+".pdf")
	if err := os.WriteFile(out, PDF(pages, width), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

func documentXML(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx package: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		return string(b), err
	}
	return "", fmt.Errorf("package has no word/document.xml")
}
