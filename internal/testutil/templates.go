package testutil

import (
	"testing"
)

// Default template file names and the page widths FakeConvert gives each section
const (
	CoverFile   = "Affidavit template to change.docx"
	ExhibitFile = "Exhibit Template.docx"
	ClosingFile = "Affidavit template to change - Part 2.docx"

	CoverWidth   = 600
	ExhibitWidth = 601
	ClosingWidth = 602
)

// CoverTemplate references every cover affidavit placeholder
func CoverTemplate(pages int) []byte {
	return NewDocx().
		Paragraph("AFFIDAVIT OF {{ name }}").
		Paragraph("Court file no. ", "{{case_file}}").
		Paragraph("I, {{name}}, of {{address}}, the {{party_role}} in this matter, ", "{{stat_declaration}} as follows:").
		Table("{{party_name}}", "{{date}}").
		Paragraph("Contact: {{email}} / {{phone}}").
		Paragraph("Counsel: {{lawyer_name}}").
		Paragraph(PagesMarker(pages, CoverWidth)).
		Header("{{case_file}}").
		Margin(720).
		Bytes()
}

// ExhibitTemplate references every exhibit cover sheet placeholder
func ExhibitTemplate(pages int) []byte {
	return NewDocx().
		Paragraph("This is Exhibit \"{{letter}}\"").
		Paragraph("referred to in the affidavit of {{party_name}}").
		Paragraph("sworn before me on {{date}}").
		Paragraph(PagesMarker(pages, ExhibitWidth)).
		Margin(1000).
		Bytes()
}

// ClosingTemplate references every closing section placeholder
func ClosingTemplate(pages int) []byte {
	return NewDocx().
		Paragraph("{{stat_declaration}} before me at {{address}} on {{date}}.").
		Paragraph("{{name}}, {{party_role}} for {{party_name}}").
		Paragraph("{{lawyer_name}}").
		Paragraph("{{email}} {{phone}} {{case_file}}").
		Paragraph(PagesMarker(pages, ClosingWidth)).
		Margin(2000).
		Bytes()
}

// WriteTemplates writes the three templates under their default names
func WriteTemplates(t testing.TB, dir string, coverPages, sheetPages, closingPages int) {
	t.Helper()
	WriteFile(t, dir, CoverFile, CoverTemplate(coverPages))
	WriteFile(t, dir, ExhibitFile, ExhibitTemplate(sheetPages))
	WriteFile(t, dir, ClosingFile, ClosingTemplate(closingPages))
}
