package casefile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
)

//go:embed schema.json
var recordSchema []byte

// Fields is the flat, string-typed form of a case record as the collection
// surface submits it.
type Fields struct {
	SubjectName     string `json:"subject_name"`
	CaseFile        string `json:"case_file"`
	PartyName       string `json:"party_name"`
	LawyerName      string `json:"lawyer_name"`
	Date            string `json:"date"`
	StatDeclaration string `json:"stat_declaration"`
	Address         string `json:"address"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	PartyRole       string `json:"party_role"`
}

// ParseJSON validates raw JSON against the case record schema and builds a record
func ParseJSON(data []byte) (CaseRecord, error) {
	schemaLoader := gojsonschema.NewBytesLoader(recordSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return CaseRecord{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"case record is not valid JSON", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return CaseRecord{}, aerrors.New(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			fmt.Sprintf("case record validation failed: %s", strings.Join(errs, "; ")))
	}

	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return CaseRecord{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"cannot decode case record", err)
	}

	return f.Record()
}

// Record converts submitted fields into a CaseRecord. The subject name is
// upper-cased the way the collection form presents it.
func (f Fields) Record() (CaseRecord, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(f.Date))
	if err != nil {
		return CaseRecord{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"date must be YYYY-MM-DD", err)
	}

	mode, err := ParseDeclarationMode(f.StatDeclaration)
	if err != nil {
		return CaseRecord{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"invalid declaration", err)
	}

	role, err := ParsePartyRole(f.PartyRole)
	if err != nil {
		return CaseRecord{}, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageIntake,
			"invalid party role", err)
	}

	record := CaseRecord{
		SubjectName:     strings.ToUpper(strings.TrimSpace(f.SubjectName)),
		CaseFileID:      strings.TrimSpace(f.CaseFile),
		PartyName:       strings.TrimSpace(f.PartyName),
		LawyerName:      strings.TrimSpace(f.LawyerName),
		EventDate:       date,
		DeclarationMode: mode,
		Address:         strings.TrimSpace(f.Address),
		Email:           strings.TrimSpace(f.Email),
		Phone:           strings.TrimSpace(f.Phone),
		PartyRole:       role,
	}

	if err := record.Validate(); err != nil {
		return CaseRecord{}, err
	}
	return record, nil
}
