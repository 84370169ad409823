package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	relHeader = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relImage  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relLink   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Docx builds a WordprocessingML package with a single section
type Docx struct {
	blocks  []string
	header  string
	image   []byte
	link    string
	margin  int
	section bool
}

// NewDocx starts a document whose section has half-inch margins
func NewDocx() *Docx {
	return &Docx{margin: 720, section: true}
}

// Paragraph adds a paragraph with one w:r per run
func (b *Docx) Paragraph(runs ...string) *Docx {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, run := range runs {
		sb.WriteString(`<w:r><w:t xml:space="preserve">`)
		sb.WriteString(escape(run))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
	b.blocks = append(b.blocks, sb.String())
	return b
}

// Table adds a one-row table with a paragraph per cell
func (b *Docx) Table(cells ...string) *Docx {
	var sb strings.Builder
	sb.WriteString("<w:tbl><w:tr>")
	for _, cell := range cells {
		sb.WriteString("<w:tc><w:p><w:r><w:t>")
		sb.WriteString(escape(cell))
		sb.WriteString("</w:t></w:r></w:p></w:tc>")
	}
	sb.WriteString("</w:tr></w:tbl>")
	b.blocks = append(b.blocks, sb.String())
	return b
}

// Header gives the section a default header containing text
func (b *Docx) Header(text string) *Docx {
	b.header = text
	return b
}

// Image adds a paragraph holding an inline picture backed by a media part
func (b *Docx) Image(png []byte) *Docx {
	b.image = png
	b.blocks = append(b.blocks, `<w:p><w:r><w:drawing><wp:inline><a:graphic><a:graphicData uri="`+nsPic+`">`+
		`<pic:pic><pic:blipFill><a:blip r:embed="rId2"/></pic:blipFill></pic:pic>`+
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`)
	return b
}

// Hyperlink adds a paragraph linking to an external url
func (b *Docx) Hyperlink(url, text string) *Docx {
	b.link = url
	b.blocks = append(b.blocks, `<w:p><w:hyperlink r:id="rId3"><w:r><w:t>`+escape(text)+`</w:t></w:r></w:hyperlink></w:p>`)
	return b
}

// Margin sets all four page margins of the section, in twips
func (b *Docx) Margin(twips int) *Docx {
	b.margin = twips
	return b
}

// WithoutSection omits the trailing w:sectPr
func (b *Docx) WithoutSection() *Docx {
	b.section = false
	return b
}

// Bytes serializes the package
func (b *Docx) Bytes() []byte {
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", b.contentTypes()},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", b.document()},
		{"word/_rels/document.xml.rels", b.documentRels()},
	}
	if b.header != "" {
		parts = append(parts, struct{ name, body string }{"word/header1.xml",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<w:hdr xmlns:w="` + nsW + `" xmlns:r="` + nsR + `"><w:p><w:r><w:t>` + escape(b.header) + `</w:t></w:r></w:p></w:hdr>`})
	}
	if b.image != nil {
		parts = append(parts, struct{ name, body string }{"word/media/image1.png", string(b.image)})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (b *Docx) contentTypes() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	if b.image != nil {
		sb.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	}
	sb.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	if b.header != "" {
		sb.WriteString(`<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`)
	}
	sb.WriteString(`</Types>`)
	return sb.String()
}

func (b *Docx) documentRels() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	if b.header != "" {
		fmt.Fprintf(&sb, `<Relationship Id="rId1" Type="%s" Target="header1.xml"/>`, relHeader)
	}
	if b.image != nil {
		fmt.Fprintf(&sb, `<Relationship Id="rId2" Type="%s" Target="media/image1.png"/>`, relImage)
	}
	if b.link != "" {
		fmt.Fprintf(&sb, `<Relationship Id="rId3" Type="%s" Target="%s" TargetMode="External"/>`, relLink, escape(b.link))
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

func (b *Docx) document() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&sb, `<w:document xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s"><w:body>`,
		nsW, nsR, nsWP, nsA, nsPic)
	for _, block := range b.blocks {
		sb.WriteString(block)
	}
	if b.section {
		sb.WriteString("<w:sectPr>")
		if b.header != "" {
			sb.WriteString(`<w:headerReference w:type="default" r:id="rId1"/>`)
		}
		sb.WriteString(`<w:pgSz w:w="12240" w:h="15840"/>`)
		fmt.Fprintf(&sb, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="708" w:footer="708" w:gutter="0"/>`,
			b.margin, b.margin, b.margin, b.margin)
		sb.WriteString("</w:sectPr>")
	}
	sb.WriteString("</w:body></w:document>")
	return sb.String()
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
