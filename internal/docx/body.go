package docx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Body returns the block-level children of w:body in order, including a
// trailing w:sectPr when the document has one
func (d *Document) Body() []*etree.Element {
	return d.body.ChildElements()
}

// BodyLen is the number of block-level body elements
func (d *Document) BodyLen() int {
	return len(d.body.ChildElements())
}

// BodyTags returns the full tag of every body element, e.g. "w:p"
func (d *Document) BodyTags() []string {
	children := d.body.ChildElements()
	tags := make([]string, len(children))
	for i, el := range children {
		tags[i] = el.FullTag()
	}
	return tags
}

// BodyXML serializes each body element separately
func (d *Document) BodyXML() ([]string, error) {
	children := d.body.ChildElements()
	out := make([]string, len(children))
	for i, el := range children {
		doc := etree.NewDocument()
		doc.SetRoot(el.Copy())
		s, err := doc.WriteToString()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize body element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// Paragraphs returns the visible text of every body-level paragraph
func (d *Document) Paragraphs() []string {
	var out []string
	for _, el := range d.body.ChildElements() {
		if el.FullTag() != "w:p" {
			continue
		}
		var sb strings.Builder
		for _, t := range paragraphTexts(el) {
			sb.WriteString(t.Text())
		}
		out = append(out, sb.String())
	}
	return out
}

// trailingSectPr returns the body-level section properties, if any
func (d *Document) trailingSectPr() *etree.Element {
	children := d.body.ChildElements()
	if len(children) == 0 {
		return nil
	}
	last := children[len(children)-1]
	if last.FullTag() == "w:sectPr" {
		return last
	}
	return nil
}

// Append concatenates other's body after d's body. d's trailing section
// properties become a section break so both documents keep their own section
// layout; other's trailing section properties become the new final section.
// Every element of other is appended exactly once, so the resulting body
// length is d.BodyLen() + other.BodyLen().
func (d *Document) Append(other *Document) error {
	incoming := make([]*etree.Element, 0, other.BodyLen())
	for _, el := range other.Body() {
		incoming = append(incoming, el.Copy())
	}

	if err := newImporter(d, other).remapRefs(incoming); err != nil {
		return fmt.Errorf("failed to import relationships: %w", err)
	}

	if sect := d.trailingSectPr(); sect != nil {
		d.body.RemoveChild(sect)
		d.body.AddChild(sectionBreak(sect))
	}

	for i, el := range incoming {
		if el.FullTag() == "w:sectPr" && i != len(incoming)-1 {
			el = sectionBreak(el)
		}
		d.body.AddChild(el)
	}
	return nil
}

// sectionBreak wraps section properties in an otherwise empty paragraph
func sectionBreak(sect *etree.Element) *etree.Element {
	p := etree.NewElement("w:p")
	pPr := p.CreateElement("w:pPr")
	pPr.AddChild(sect)
	return p
}
