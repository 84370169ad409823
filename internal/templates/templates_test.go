package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/testutil"
)

func testRecord() casefile.CaseRecord {
	return casefile.CaseRecord{
		SubjectName:     "JANE DOE",
		CaseFileID:      "CV-2024-0113",
		PartyName:       "Doe Holdings Ltd.",
		LawyerName:      "R. Smith",
		EventDate:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DeclarationMode: casefile.Sworn,
		Address:         "1 Main St",
		Email:           "jane@example.com",
		Phone:           "555-0100",
		PartyRole:       casefile.Plaintiff,
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTemplates(t, dir, 2, 1, 3)
	store, err := NewStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestLoadManifest_Default(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultManifest(), m)

	spec, ok := m.Lookup(casefile.TemplateExhibit)
	require.True(t, ok)
	assert.Equal(t, "Exhibit Template.docx", spec.File)
	assert.Equal(t, []string{"letter", "party_name", "date"}, spec.Placeholders)
}

func TestLoadManifest_File(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, m Manifest)
	}{
		{
			name: "override one template",
			content: `templates:
  - id: exhibit_cover_sheet
    file: custom/exhibit.docx
    placeholders: [letter]
`,
			check: func(t *testing.T, m Manifest) {
				assert.Len(t, m.Templates, 3)
				spec, ok := m.Lookup(casefile.TemplateExhibit)
				require.True(t, ok)
				assert.Equal(t, "custom/exhibit.docx", spec.File)
				_, ok = m.Lookup(casefile.TemplateCover)
				assert.True(t, ok)
			},
		},
		{
			name:    "missing file name",
			content: "templates:\n  - id: cover_affidavit\n",
			wantErr: "needs both id and file",
		},
		{
			name:    "duplicate id",
			content: "templates:\n  - {id: a, file: a.docx}\n  - {id: a, file: b.docx}\n",
			wantErr: "listed twice",
		},
		{
			name:    "invalid yaml",
			content: "templates: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFile(t, dir, ManifestFile, []byte(tt.content))

			m, err := LoadManifest(dir)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}

func TestStore_Render(t *testing.T) {
	store, _ := newTestStore(t)
	record := testRecord()

	cover, err := store.Render(context.Background(), record.Cover())
	require.NoError(t, err)
	paragraphs := cover.Paragraphs()
	assert.Equal(t, "AFFIDAVIT OF JANE DOE", paragraphs[0])
	assert.Equal(t, "Court file no. CV-2024-0113", paragraphs[1])
	assert.Equal(t, "I, JANE DOE, of 1 Main St, the plaintiff in this matter, Sworn as follows:", paragraphs[2])

	sheet, err := store.Render(context.Background(), record.ExhibitSheet("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`This is Exhibit "a"`,
		"referred to in the affidavit of Doe Holdings Ltd.",
		"sworn before me on 2024-05-01",
		testutil.PagesMarker(1, testutil.ExhibitWidth),
	}, sheet.Paragraphs())
}

func TestStore_RenderIsolation(t *testing.T) {
	store, _ := newTestStore(t)
	record := testRecord()

	a, err := store.Render(context.Background(), record.ExhibitSheet("a"))
	require.NoError(t, err)
	b, err := store.Render(context.Background(), record.ExhibitSheet("b"))
	require.NoError(t, err)

	assert.Equal(t, `This is Exhibit "a"`, a.Paragraphs()[0])
	assert.Equal(t, `This is Exhibit "b"`, b.Paragraphs()[0])

	// The template on disk still carries its placeholder
	raw, err := store.Load(casefile.TemplateExhibit)
	require.NoError(t, err)
	assert.Equal(t, testutil.ExhibitTemplate(1), raw)

	stats := store.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.GreaterOrEqual(t, stats.Hits, int64(2))
}

type partialContext struct{}

func (partialContext) TemplateID() string { return casefile.TemplateExhibit }
func (partialContext) Placeholders() map[string]string {
	return map[string]string{"letter": "a"}
}

type unknownContext struct{}

func (unknownContext) TemplateID() string              { return "no_such_template" }
func (unknownContext) Placeholders() map[string]string { return nil }

func TestStore_RenderErrors(t *testing.T) {
	store, dir := newTestStore(t)

	_, err := store.Render(context.Background(), partialContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrMissingPlaceholder))
	var ae *aerrors.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, []string{"date", "party_name"}, ae.Missing)
	assert.Equal(t, casefile.TemplateExhibit, ae.Template)

	_, err = store.Render(context.Background(), unknownContext{})
	assert.True(t, errors.Is(err, aerrors.ErrTemplateNotFound))

	require.NoError(t, os.Remove(filepath.Join(dir, testutil.ClosingFile)))
	_, err = store.Render(context.Background(), testRecord().Closing())
	assert.True(t, errors.Is(err, aerrors.ErrTemplateNotFound))

	testutil.WriteFile(t, dir, testutil.CoverFile, []byte("not a docx"))
	_, err = store.Render(context.Background(), testRecord().Cover())
	assert.True(t, errors.Is(err, aerrors.ErrIOFailure))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Render(ctx, testRecord().ExhibitSheet("a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ReloadsChangedTemplate(t *testing.T) {
	store, dir := newTestStore(t)

	first, err := store.Load(casefile.TemplateExhibit)
	require.NoError(t, err)

	path := testutil.WriteFile(t, dir, testutil.ExhibitFile, testutil.ExhibitTemplate(4))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := store.Load(casefile.TemplateExhibit)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, testutil.ExhibitTemplate(4), second)
}

func TestStore_RejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	testutil.WriteFile(t, outside, "evil.docx", testutil.ExhibitTemplate(1))

	store, err := NewStore(dir, WithManifest(Manifest{Templates: []Spec{
		{ID: casefile.TemplateExhibit, File: "../" + filepath.Base(outside) + "/evil.docx"},
	}}))
	require.NoError(t, err)

	_, err = store.Load(casefile.TemplateExhibit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "outside template directory")
}

func TestStore_Check(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.Remove(filepath.Join(dir, testutil.ClosingFile)))

	statuses := store.Check()
	require.Len(t, statuses, 3)

	byID := make(map[string]Status)
	for _, st := range statuses {
		byID[st.ID] = st
	}
	assert.True(t, byID[casefile.TemplateCover].Available)
	assert.Empty(t, byID[casefile.TemplateCover].Undeclared)
	assert.True(t, byID[casefile.TemplateExhibit].Available)
	assert.Equal(t, []string{"date", "letter", "party_name"}, byID[casefile.TemplateExhibit].Referenced)
	assert.False(t, byID[casefile.TemplateClosing].Available)
	assert.NotEmpty(t, byID[casefile.TemplateClosing].Error)
}

func TestStore_UnsupportedTags(t *testing.T) {
	store, dir := newTestStore(t)
	testutil.WriteFile(t, dir, testutil.ExhibitFile, testutil.NewDocx().
		Paragraph("EXHIBIT {{ letter }} to the affidavit of {{ party_name }}").
		Paragraph("{% if sworn %}Sworn{% endif %} on {{ date }}").
		Bytes())

	_, err := store.Render(context.Background(), testRecord().ExhibitSheet("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrInvalidInput))
	var ae *aerrors.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, casefile.TemplateExhibit, ae.Template)
	assert.Contains(t, err.Error(), "{% if sworn %}")

	for _, st := range store.Check() {
		if st.ID != casefile.TemplateExhibit {
			assert.True(t, st.Available, st.ID)
			continue
		}
		assert.False(t, st.Available)
		assert.Contains(t, st.Error, "unsupported template tags")
	}
}

func TestByteCache_Eviction(t *testing.T) {
	cache := newByteCache(10)
	now := time.Now()

	cache.put("a", now, []byte("aaaa"))
	cache.put("b", now, []byte("bbbb"))
	_, ok := cache.get("a", now)
	require.True(t, ok)

	cache.put("c", now, []byte("cccc"))

	_, ok = cache.get("b", now)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.get("a", now)
	assert.True(t, ok)

	cache.put("huge", now, make([]byte, 11))
	_, ok = cache.get("huge", now)
	assert.False(t, ok)

	stats := cache.snapshot()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(8), stats.Bytes)
}
