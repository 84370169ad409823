// Package templates loads the affidavit DOCX templates and renders typed
// case contexts into fresh documents.
package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
)

// ManifestFile is the optional template manifest inside the template directory
const ManifestFile = "templates.yaml"

// Manifest lists the templates a directory provides
type Manifest struct {
	Templates []Spec `yaml:"templates"`
}

// Spec describes one template
type Spec struct {
	ID           string   `yaml:"id" json:"id"`
	File         string   `yaml:"file" json:"file"`
	Placeholders []string `yaml:"placeholders" json:"placeholders"`
}

// DefaultManifest returns the three templates the assembler needs, under the
// file names the affidavit templates are distributed with
func DefaultManifest() Manifest {
	return Manifest{Templates: []Spec{
		{
			ID:   casefile.TemplateCover,
			File: "Affidavit template to change.docx",
			Placeholders: []string{"name", "case_file", "party_name", "date", "stat_declaration",
				"address", "email", "phone", "lawyer_name", "party_role"},
		},
		{
			ID:           casefile.TemplateExhibit,
			File:         "Exhibit Template.docx",
			Placeholders: []string{"letter", "party_name", "date"},
		},
		{
			ID:   casefile.TemplateClosing,
			File: "Affidavit template to change - Part 2.docx",
			Placeholders: []string{"party_name", "party_role", "lawyer_name", "date", "name",
				"address", "email", "phone", "stat_declaration", "case_file"},
		},
	}}
}

// LoadManifest reads dir/templates.yaml, falling back to DefaultManifest when
// the file does not exist. Templates missing from the file keep their defaults.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if os.IsNotExist(err) {
		return DefaultManifest(), nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read template manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse template manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Templates))
	for i, spec := range m.Templates {
		if spec.ID == "" || spec.File == "" {
			return Manifest{}, fmt.Errorf("template manifest entry %d needs both id and file", i)
		}
		if seen[spec.ID] {
			return Manifest{}, fmt.Errorf("template %s listed twice", spec.ID)
		}
		seen[spec.ID] = true
	}

	for _, spec := range DefaultManifest().Templates {
		if !seen[spec.ID] {
			m.Templates = append(m.Templates, spec)
		}
	}
	return m, nil
}

// Lookup finds a template by id
func (m Manifest) Lookup(id string) (Spec, bool) {
	for _, spec := range m.Templates {
		if spec.ID == id {
			return spec, true
		}
	}
	return Spec{}, false
}
