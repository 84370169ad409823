package docx

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// placeholderPattern matches {{ name }} with optional inner whitespace
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// tagPattern matches any expression or statement tag, closed or not
var tagPattern = regexp.MustCompile(`\{\{.*?\}\}|\{%.*?%\}|\{\{|\{%`)

// MissingError lists placeholders referenced by a document but absent from the values
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("unset placeholders: %s", strings.Join(e.Names, ", "))
}

// UnsupportedTagError lists template tags other than plain {{ name }}
// placeholders: filters, expressions and {% %} statements
type UnsupportedTagError struct {
	Tags []string
}

func (e *UnsupportedTagError) Error() string {
	return fmt.Sprintf("unsupported template tags: %s", strings.Join(e.Tags, ", "))
}

// Placeholders returns the sorted, distinct placeholder names used in the
// document body, headers and footers
func (d *Document) Placeholders() ([]string, error) {
	names, _, err := d.scanTags()
	return names, err
}

// UnsupportedTags returns the sorted, distinct tags that Render cannot fill
func (d *Document) UnsupportedTags() ([]string, error) {
	_, tags, err := d.scanTags()
	return tags, err
}

func (d *Document) scanTags() (names, unsupported []string, err error) {
	seen := make(map[string]bool)
	bad := make(map[string]bool)
	err = d.eachParagraph(func(_ *etree.Element, texts []*etree.Element) {
		text := joinTexts(texts)
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = true
		}
		rest := placeholderPattern.ReplaceAllString(text, "")
		for _, tag := range tagPattern.FindAllString(rest, -1) {
			bad[tag] = true
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return sortedKeys(seen), sortedKeys(bad), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render substitutes every placeholder with its value. Only plain
// {{ name }} placeholders are supported: any other tag fails with an
// *UnsupportedTagError, and a referenced placeholder without a value fails
// with a *MissingError. Either way the document is left untouched.
func (d *Document) Render(values map[string]string) error {
	names, unsupported, err := d.scanTags()
	if err != nil {
		return err
	}
	if len(unsupported) > 0 {
		return &UnsupportedTagError{Tags: unsupported}
	}

	var missing []string
	for _, name := range names {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}

	return d.eachParagraph(func(_ *etree.Element, texts []*etree.Element) {
		substitute(texts, values)
	})
}

// eachParagraph visits every paragraph of every renderable part with the
// w:t elements that belong to it directly (nested paragraphs are visited
// on their own)
func (d *Document) eachParagraph(fn func(p *etree.Element, texts []*etree.Element)) error {
	for _, name := range d.renderableParts() {
		doc, err := d.xmlPart(name)
		if err != nil {
			return err
		}
		if doc == nil {
			continue
		}
		for _, p := range doc.FindElements("//w:p") {
			texts := paragraphTexts(p)
			if len(texts) > 0 {
				fn(p, texts)
			}
		}
	}
	return nil
}

// paragraphTexts collects the w:t descendants of p, skipping nested paragraphs
func paragraphTexts(p *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			switch child.FullTag() {
			case "w:p":
				continue
			case "w:t":
				out = append(out, child)
			default:
				walk(child)
			}
		}
	}
	walk(p)
	return out
}

func joinTexts(texts []*etree.Element) string {
	var sb strings.Builder
	for _, t := range texts {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// substitute replaces placeholders in a run of w:t elements. A placeholder
// split across several runs is written into the run where it starts; the
// runs it spilled into keep only their text after the placeholder.
func substitute(texts []*etree.Element, values map[string]string) {
	segs := make([]string, len(texts))
	starts := make([]int, len(texts))
	offset := 0
	for i, t := range texts {
		segs[i] = t.Text()
		starts[i] = offset
		offset += len(segs[i])
	}

	joined := strings.Join(segs, "")
	matches := placeholderPattern.FindAllStringSubmatchIndex(joined, -1)
	if len(matches) == 0 {
		return
	}

	segmentAt := func(pos int) int {
		for i := len(starts) - 1; i >= 0; i-- {
			if starts[i] <= pos && (pos < starts[i]+len(segs[i]) || len(segs[i]) == 0 && pos == starts[i]) {
				return i
			}
		}
		return 0
	}

	changed := make([]bool, len(texts))
	// Right to left so earlier offsets stay valid
	for m := len(matches) - 1; m >= 0; m-- {
		start, end := matches[m][0], matches[m][1]
		name := joined[matches[m][2]:matches[m][3]]
		value := values[name]

		first := segmentAt(start)
		last := segmentAt(end - 1)

		if first == last {
			s := segs[first]
			segs[first] = s[:start-starts[first]] + value + s[end-starts[first]:]
			changed[first] = true
			continue
		}

		segs[first] = segs[first][:start-starts[first]] + value
		changed[first] = true
		for k := first + 1; k < last; k++ {
			segs[k] = ""
			changed[k] = true
		}
		segs[last] = segs[last][end-starts[last]:]
		changed[last] = true
	}

	for i, t := range texts {
		if !changed[i] {
			continue
		}
		t.SetText(segs[i])
		t.CreateAttr("xml:space", "preserve")
	}
}
