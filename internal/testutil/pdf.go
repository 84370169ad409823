// Package testutil builds small DOCX packages and PDF files for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PageHeight of every generated page, in points
const PageHeight = 792

// PDF returns a minimal PDF with the given number of pages. Every page is
// width points wide so merged output can be traced back to its source.
func PDF(pages int, width int) []byte {
	if pages < 1 {
		pages = 1
	}

	pdf := "%PDF-1.4\n"
	offsets := make([]int, 0, 2+2*pages)

	// Catalog
	offsets = append(offsets, len(pdf))
	pdf += "1 0 obj\n<<\n/Type /Catalog\n/Pages 2 0 R\n>>\nendobj\n"

	// Page tree
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	offsets = append(offsets, len(pdf))
	pdf += fmt.Sprintf("2 0 obj\n<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n>>\nendobj\n",
		strings.Join(kids, " "), pages)

	// Pages
	for i := 0; i < pages; i++ {
		offsets = append(offsets, len(pdf))
		pdf += fmt.Sprintf("%d 0 obj\n<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 %d %d]\n/Contents %d 0 R\n"+
			"/Resources <<\n/Font <<\n/F1 <<\n/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n>>\n>>\n>>\n>>\nendobj\n",
			3+i, width, PageHeight, 3+pages+i)
	}

	// Content streams
	for i := 0; i < pages; i++ {
		offsets = append(offsets, len(pdf))
		content := fmt.Sprintf("BT\n/F1 12 Tf\n72 700 Td\n(Page %d) Tj\nET\n", i+1)
		pdf += fmt.Sprintf("%d 0 obj\n<<\n/Length %d\n>>\nstream\n%sendstream\nendobj\n",
			3+pages+i, len(content), content)
	}

	// Cross-reference table
	xrefStart := len(pdf)
	pdf += fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		pdf += fmt.Sprintf("%010d 00000 n \n", off)
	}

	pdf += fmt.Sprintf("trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n", len(offsets)+1)
	pdf += fmt.Sprintf("%d\n", xrefStart)
	pdf += "%%EOF"

	return []byte(pdf)
}

// WriteFile writes data under dir and returns the path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
