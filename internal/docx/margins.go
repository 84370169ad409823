package docx

import (
	"strconv"

	"github.com/beevik/etree"
)

// TwipsPerInch converts inches to the twentieths of a point OOXML uses for page geometry
const TwipsPerInch = 1440

// Margins of one section, in twips
type Margins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Uniform returns equal margins on all four sides
func Uniform(twips int) Margins {
	return Margins{Top: twips, Right: twips, Bottom: twips, Left: twips}
}

// sectPr children that must come before w:pgMar
var beforePgMar = map[string]bool{
	"w:headerReference": true,
	"w:footerReference": true,
	"w:footnotePr":      true,
	"w:endnotePr":       true,
	"w:type":            true,
	"w:pgSz":            true,
}

// sections returns every section properties element of the main document:
// section breaks inside paragraphs, then the final body-level one
func (d *Document) sections() []*etree.Element {
	return d.body.FindElements(".//w:sectPr")
}

// SectionCount is the number of sections in the document
func (d *Document) SectionCount() int {
	return len(d.sections())
}

// SetMargins overrides top, right, bottom and left page margins of every
// section. A document without section properties gets a final one.
func (d *Document) SetMargins(m Margins) {
	sections := d.sections()
	if len(sections) == 0 {
		sections = []*etree.Element{d.body.CreateElement("w:sectPr")}
	}

	for _, sect := range sections {
		pgMar := sect.SelectElement("w:pgMar")
		if pgMar == nil {
			pgMar = etree.NewElement("w:pgMar")
			pgMar.CreateAttr("w:header", "720")
			pgMar.CreateAttr("w:footer", "720")
			pgMar.CreateAttr("w:gutter", "0")
			sect.InsertChildAt(pgMarIndex(sect), pgMar)
		}
		pgMar.CreateAttr("w:top", strconv.Itoa(m.Top))
		pgMar.CreateAttr("w:right", strconv.Itoa(m.Right))
		pgMar.CreateAttr("w:bottom", strconv.Itoa(m.Bottom))
		pgMar.CreateAttr("w:left", strconv.Itoa(m.Left))
	}
}

// pgMarIndex finds the child token index a new w:pgMar belongs at
func pgMarIndex(sect *etree.Element) int {
	index := 0
	for _, child := range sect.ChildElements() {
		if beforePgMar[child.FullTag()] {
			index = child.Index() + 1
		}
	}
	return index
}

// SectionMargins reports the margins of every section in document order.
// Missing attributes read as -1.
func (d *Document) SectionMargins() []Margins {
	sections := d.sections()
	out := make([]Margins, len(sections))
	for i, sect := range sections {
		out[i] = Margins{Top: -1, Right: -1, Bottom: -1, Left: -1}
		pgMar := sect.SelectElement("w:pgMar")
		if pgMar == nil {
			continue
		}
		out[i] = Margins{
			Top:    attrInt(pgMar, "w:top"),
			Right:  attrInt(pgMar, "w:right"),
			Bottom: attrInt(pgMar, "w:bottom"),
			Left:   attrInt(pgMar, "w:left"),
		}
	}
	return out
}

func attrInt(el *etree.Element, key string) int {
	v, err := strconv.Atoi(el.SelectAttrValue(key, ""))
	if err != nil {
		return -1
	}
	return v
}
