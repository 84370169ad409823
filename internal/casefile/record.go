// Package casefile holds the case data collected for one assembly run and the
// typed template contexts derived from it.
package casefile

import (
	"fmt"
	"strings"
	"time"

	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
)

// DateLayout is the format every template receives dates in
const DateLayout = "2006-01-02"

// DeclarationMode is how the deponent attests to the affidavit
type DeclarationMode string

const (
	Sworn    DeclarationMode = "Sworn"
	Affirmed DeclarationMode = "Affirmed"
)

// PartyRole is the deponent's role in the proceeding
type PartyRole string

const (
	Witness   PartyRole = "Witness"
	Plaintiff PartyRole = "Plaintiff"
	Defendant PartyRole = "Defendant"
)

// CaseRecord is the immutable input of one assembly run
type CaseRecord struct {
	SubjectName     string          `json:"subject_name"`
	CaseFileID      string          `json:"case_file"`
	PartyName       string          `json:"party_name"`
	LawyerName      string          `json:"lawyer_name"`
	EventDate       time.Time       `json:"date"`
	DeclarationMode DeclarationMode `json:"stat_declaration"`
	Address         string          `json:"address"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	PartyRole       PartyRole       `json:"party_role"`
}

// ParseDeclarationMode accepts the mode case-insensitively
func ParseDeclarationMode(s string) (DeclarationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sworn":
		return Sworn, nil
	case "affirmed":
		return Affirmed, nil
	}
	return "", fmt.Errorf("unknown declaration mode %q (must be Sworn or Affirmed)", s)
}

// ParsePartyRole accepts the role case-insensitively
func ParsePartyRole(s string) (PartyRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "witness":
		return Witness, nil
	case "plaintiff":
		return Plaintiff, nil
	case "defendant":
		return Defendant, nil
	}
	return "", fmt.Errorf("unknown party role %q (must be Witness, Plaintiff or Defendant)", s)
}

// Validate checks that every field is present. Content is not re-validated.
func (r CaseRecord) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	check("subject_name", r.SubjectName)
	check("case_file", r.CaseFileID)
	check("party_name", r.PartyName)
	check("lawyer_name", r.LawyerName)
	check("stat_declaration", string(r.DeclarationMode))
	check("address", r.Address)
	check("email", r.Email)
	check("phone", r.Phone)
	check("party_role", string(r.PartyRole))
	if r.EventDate.IsZero() {
		missing = append(missing, "date")
	}

	if len(missing) > 0 {
		return aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			fmt.Sprintf("case record is missing fields %v", missing))
	}

	if r.DeclarationMode != Sworn && r.DeclarationMode != Affirmed {
		return aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			fmt.Sprintf("invalid declaration mode %q", r.DeclarationMode))
	}
	switch r.PartyRole {
	case Witness, Plaintiff, Defendant:
	default:
		return aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			fmt.Sprintf("invalid party role %q", r.PartyRole))
	}

	return nil
}

// FormattedDate returns the event date in DateLayout
func (r CaseRecord) FormattedDate() string {
	return r.EventDate.Format(DateLayout)
}

// Cover builds the cover affidavit context
func (r CaseRecord) Cover() CoverContext {
	return CoverContext{
		Name:            r.SubjectName,
		CaseFile:        r.CaseFileID,
		PartyName:       r.PartyName,
		Date:            r.FormattedDate(),
		StatDeclaration: string(r.DeclarationMode),
		Address:         r.Address,
		Email:           r.Email,
		Phone:           r.Phone,
		LawyerName:      r.LawyerName,
		PartyRole:       strings.ToLower(string(r.PartyRole)),
	}
}

// ExhibitSheet builds the context of one exhibit cover sheet
func (r CaseRecord) ExhibitSheet(letter string) ExhibitSheetContext {
	return ExhibitSheetContext{
		Letter:    letter,
		PartyName: r.PartyName,
		Date:      r.FormattedDate(),
	}
}

// Closing builds the closing section context. The role keeps its entered casing.
func (r CaseRecord) Closing() ClosingContext {
	return ClosingContext{
		PartyName:       r.PartyName,
		PartyRole:       string(r.PartyRole),
		LawyerName:      r.LawyerName,
		Date:            r.FormattedDate(),
		Name:            r.SubjectName,
		Address:         r.Address,
		Email:           r.Email,
		Phone:           r.Phone,
		StatDeclaration: string(r.DeclarationMode),
		CaseFile:        r.CaseFileID,
	}
}
