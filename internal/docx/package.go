// Package docx manipulates WordprocessingML packages: placeholder rendering,
// body concatenation and section margins.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"

	// MIMEType is the content type of a .docx file
	MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// Extension is the file extension of an editable document
	Extension = ".docx"
)

var headerFooterPart = regexp.MustCompile(`^word/(header|footer)[0-9]*\.xml$`)

// zipEpoch keeps serialized packages byte-stable across runs
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Document is an opened .docx package. Parsed XML parts are written back on Bytes.
type Document struct {
	parts map[string][]byte
	order []string
	xml   map[string]*etree.Document
	body  *etree.Element
}

// Open reads a .docx package from memory
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a docx package: %w", err)
	}

	d := &Document{
		parts: make(map[string][]byte, len(zr.File)),
		xml:   make(map[string]*etree.Document),
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}
		d.parts[f.Name] = b
		d.order = append(d.order, f.Name)
	}

	main, err := d.xmlPart(documentPart)
	if err != nil {
		return nil, err
	}
	if main == nil {
		return nil, fmt.Errorf("package has no %s", documentPart)
	}

	body := main.FindElement("//w:body")
	if body == nil {
		return nil, fmt.Errorf("%s has no w:body", documentPart)
	}
	d.body = body

	return d, nil
}

// xmlPart returns the parsed form of a part, parsing it on first use.
// A missing part yields nil without error.
func (d *Document) xmlPart(name string) (*etree.Document, error) {
	if doc, ok := d.xml[name]; ok {
		return doc, nil
	}
	raw, ok := d.parts[name]
	if !ok {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	d.xml[name] = doc
	return doc, nil
}

// setPart stores raw bytes for a part, keeping zip order stable
func (d *Document) setPart(name string, data []byte) {
	if _, exists := d.parts[name]; !exists {
		d.order = append(d.order, name)
	}
	d.parts[name] = data
	delete(d.xml, name)
}

// hasPart reports whether the package contains a part
func (d *Document) hasPart(name string) bool {
	_, ok := d.parts[name]
	return ok
}

// renderableParts lists the main document and every header and footer part
func (d *Document) renderableParts() []string {
	names := []string{documentPart}
	var extra []string
	for _, name := range d.order {
		if headerFooterPart.MatchString(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Bytes serializes the package
func (d *Document) Bytes() ([]byte, error) {
	for name, doc := range d.xml {
		b, err := doc.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", name, err)
		}
		d.parts[name] = b
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range d.order {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add part %s: %w", name, err)
		}
		if _, err := w.Write(d.parts[name]); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish package: %w", err)
	}
	return buf.Bytes(), nil
}

// Parts returns the package part names in zip order
func (d *Document) Parts() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// relsPartFor returns the relationships part name of a part
func relsPartFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolveTarget resolves a relationship target relative to its source part
func resolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(sourcePart), target))
}

// relativeTarget expresses part as a target relative to sourcePart's directory
func relativeTarget(sourcePart, part string) string {
	dir := path.Dir(sourcePart) + "/"
	if strings.HasPrefix(part, dir) {
		return strings.TrimPrefix(part, dir)
	}
	return "/" + part
}
