package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// relationships returns the parsed rels part of a part, creating an empty one if needed
func (d *Document) relationships(part string) (*etree.Document, error) {
	name := relsPartFor(part)
	doc, err := d.xmlPart(name)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	doc = etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", relsNamespace)
	d.setPart(name, nil)
	d.xml[name] = doc
	return doc, nil
}

// lookupRel finds a relationship element by id
func lookupRel(rels *etree.Document, id string) *etree.Element {
	if rels == nil || rels.Root() == nil {
		return nil
	}
	for _, rel := range rels.Root().ChildElements() {
		if rel.SelectAttrValue("Id", "") == id {
			return rel
		}
	}
	return nil
}

// addRel appends a relationship with a fresh id and returns the id
func addRel(rels *etree.Document, relType, target string, external bool) string {
	root := rels.Root()
	taken := make(map[string]bool)
	for _, rel := range root.ChildElements() {
		taken[rel.SelectAttrValue("Id", "")] = true
	}

	n := len(taken) + 1
	id := "rId" + strconv.Itoa(n)
	for taken[id] {
		n++
		id = "rId" + strconv.Itoa(n)
	}

	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	if external {
		rel.CreateAttr("TargetMode", "External")
	}
	return id
}

// importer copies parts referenced from another package into d
type importer struct {
	dst    *Document
	src    *Document
	copied map[string]string // src part -> dst part
}

func newImporter(dst, src *Document) *importer {
	return &importer{dst: dst, src: src, copied: make(map[string]string)}
}

// remapRefs rewrites every r:* attribute in elements so it points at a
// relationship of the destination main document part
func (im *importer) remapRefs(elements []*etree.Element) error {
	srcRels, err := im.src.xmlPart(documentRelsPart)
	if err != nil {
		return err
	}
	dstRels, err := im.dst.relationships(documentPart)
	if err != nil {
		return err
	}

	ids := make(map[string]string)
	for _, root := range elements {
		for _, el := range append([]*etree.Element{root}, root.FindElements(".//*")...) {
			for i := range el.Attr {
				attr := &el.Attr[i]
				if attr.Space != "r" {
					continue
				}
				if newID, ok := ids[attr.Value]; ok {
					attr.Value = newID
					continue
				}
				rel := lookupRel(srcRels, attr.Value)
				if rel == nil {
					return fmt.Errorf("relationship %s referenced but not defined", attr.Value)
				}
				newID, err := im.importRel(rel, documentPart, dstRels)
				if err != nil {
					return err
				}
				ids[attr.Value] = newID
				attr.Value = newID
			}
		}
	}
	return nil
}

// importRel recreates one source relationship of sourcePart in dstRels
func (im *importer) importRel(rel *etree.Element, sourcePart string, dstRels *etree.Document) (string, error) {
	relType := rel.SelectAttrValue("Type", "")
	target := rel.SelectAttrValue("Target", "")

	if rel.SelectAttrValue("TargetMode", "") == "External" {
		return addRel(dstRels, relType, target, true), nil
	}

	srcPart := resolveTarget(sourcePart, target)
	dstPart, err := im.importPart(srcPart)
	if err != nil {
		return "", err
	}
	return addRel(dstRels, relType, relativeTarget(sourcePart, dstPart), false), nil
}

// importPart copies a part, its content type, and its own relationship
// targets. Returns the destination part name.
func (im *importer) importPart(srcPart string) (string, error) {
	if dstPart, ok := im.copied[srcPart]; ok {
		return dstPart, nil
	}

	data, ok := im.src.parts[srcPart]
	if !ok {
		return "", fmt.Errorf("relationship target %s missing from package", srcPart)
	}
	if parsed, ok := im.src.xml[srcPart]; ok {
		b, err := parsed.WriteToBytes()
		if err != nil {
			return "", fmt.Errorf("failed to serialize %s: %w", srcPart, err)
		}
		data = b
	}

	dstPart := im.dst.freePartName(srcPart)
	im.copied[srcPart] = dstPart
	im.dst.setPart(dstPart, data)

	if err := im.dst.copyContentType(im.src, srcPart, dstPart); err != nil {
		return "", err
	}

	srcRels, err := im.src.xmlPart(relsPartFor(srcPart))
	if err != nil {
		return "", err
	}
	if srcRels == nil || srcRels.Root() == nil {
		return dstPart, nil
	}

	// Nested parts keep their relationship ids; only targets move.
	dstRels := srcRels.Copy()
	for _, rel := range dstRels.Root().ChildElements() {
		if rel.SelectAttrValue("TargetMode", "") == "External" {
			continue
		}
		nested := resolveTarget(srcPart, rel.SelectAttrValue("Target", ""))
		moved, err := im.importPart(nested)
		if err != nil {
			return "", err
		}
		rel.CreateAttr("Target", relativeTarget(dstPart, moved))
	}
	relsName := relsPartFor(dstPart)
	im.dst.setPart(relsName, nil)
	im.dst.xml[relsName] = dstRels

	return dstPart, nil
}

// freePartName returns name, or a numbered variant of it that the package does not use yet
func (d *Document) freePartName(name string) string {
	if !d.hasPart(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !d.hasPart(candidate) {
			return candidate
		}
	}
}

// copyContentType registers dstPart's content type using src's declaration for srcPart
func (d *Document) copyContentType(src *Document, srcPart, dstPart string) error {
	srcTypes, err := src.xmlPart(contentTypesPart)
	if err != nil || srcTypes == nil {
		return err
	}
	dstTypes, err := d.xmlPart(contentTypesPart)
	if err != nil {
		return err
	}
	if dstTypes == nil || dstTypes.Root() == nil {
		return fmt.Errorf("package has no %s", contentTypesPart)
	}

	for _, o := range srcTypes.Root().SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == "/"+srcPart {
			override := dstTypes.Root().CreateElement("Override")
			override.CreateAttr("PartName", "/"+dstPart)
			override.CreateAttr("ContentType", o.SelectAttrValue("ContentType", ""))
			return nil
		}
	}

	ext := strings.TrimPrefix(path.Ext(dstPart), ".")
	for _, def := range dstTypes.Root().SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	for _, def := range srcTypes.Root().SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			added := dstTypes.Root().CreateElement("Default")
			added.CreateAttr("Extension", ext)
			added.CreateAttr("ContentType", def.SelectAttrValue("ContentType", ""))
			// Defaults must precede overrides
			if first := dstTypes.Root().SelectElement("Override"); first != nil {
				dstTypes.Root().InsertChildAt(first.Index(), added)
			}
			return nil
		}
	}
	return nil
}
