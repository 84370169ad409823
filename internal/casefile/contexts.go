package casefile

// Template identifiers
const (
	TemplateCover   = "cover_affidavit"
	TemplateExhibit = "exhibit_cover_sheet"
	TemplateClosing = "closing_section"
)

// Context is a typed template context. Placeholders maps it to the keys the
// template engine expects.
type Context interface {
	TemplateID() string
	Placeholders() map[string]string
}

// CoverContext feeds the cover affidavit template
type CoverContext struct {
	Name            string
	CaseFile        string
	PartyName       string
	Date            string
	StatDeclaration string
	Address         string
	Email           string
	Phone           string
	LawyerName      string
	PartyRole       string
}

func (c CoverContext) TemplateID() string { return TemplateCover }

func (c CoverContext) Placeholders() map[string]string {
	return map[string]string{
		"name":             c.Name,
		"case_file":        c.CaseFile,
		"party_name":       c.PartyName,
		"date":             c.Date,
		"stat_declaration": c.StatDeclaration,
		"address":          c.Address,
		"email":            c.Email,
		"phone":            c.Phone,
		"lawyer_name":      c.LawyerName,
		"party_role":       c.PartyRole,
	}
}

// ExhibitSheetContext feeds one exhibit cover sheet
type ExhibitSheetContext struct {
	Letter    string
	PartyName string
	Date      string
}

func (c ExhibitSheetContext) TemplateID() string { return TemplateExhibit }

func (c ExhibitSheetContext) Placeholders() map[string]string {
	return map[string]string{
		"letter":     c.Letter,
		"party_name": c.PartyName,
		"date":       c.Date,
	}
}

// ClosingContext feeds the closing section template
type ClosingContext struct {
	PartyName       string
	PartyRole       string
	LawyerName      string
	Date            string
	Name            string
	Address         string
	Email           string
	Phone           string
	StatDeclaration string
	CaseFile        string
}

func (c ClosingContext) TemplateID() string { return TemplateClosing }

func (c ClosingContext) Placeholders() map[string]string {
	return map[string]string{
		"party_name":       c.PartyName,
		"party_role":       c.PartyRole,
		"lawyer_name":      c.LawyerName,
		"date":             c.Date,
		"name":             c.Name,
		"address":          c.Address,
		"email":            c.Email,
		"phone":            c.Phone,
		"stat_declaration": c.StatDeclaration,
		"case_file":        c.CaseFile,
	}
}
