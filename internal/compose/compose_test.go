package compose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-affidavit/internal/casefile"
	"github.com/a3tai/mcp-affidavit/internal/docx"
	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
	"github.com/a3tai/mcp-affidavit/internal/exhibit"
	"github.com/a3tai/mcp-affidavit/internal/templates"
	"github.com/a3tai/mcp-affidavit/internal/testutil"
)

func testRecord() casefile.CaseRecord {
	return casefile.CaseRecord{
		SubjectName:     "JANE DOE",
		CaseFileID:      "CV-2024-0113",
		PartyName:       "Doe Holdings Ltd.",
		LawyerName:      "R. Smith",
		EventDate:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DeclarationMode: casefile.Affirmed,
		Address:         "1 Main St",
		Email:           "jane@example.com",
		Phone:           "555-0100",
		PartyRole:       casefile.Witness,
	}
}

func manifest(t *testing.T, n int) []exhibit.ManifestEntry {
	t.Helper()
	files := make([]exhibit.Attachment, n)
	for i := range files {
		files[i] = exhibit.Attachment{Name: "exhibit.pdf", Data: testutil.PDF(1, 500)}
	}
	entries, err := exhibit.NewSequencer(exhibit.PolicyExtend, nil).Sequence(files)
	require.NoError(t, err)
	return entries
}

func newStore(t *testing.T) *templates.Store {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTemplates(t, dir, 2, 1, 3)
	store, err := templates.NewStore(dir)
	require.NoError(t, err)
	return store
}

func bodyLen(t *testing.T, data []byte) int {
	t.Helper()
	doc, err := docx.Open(data)
	require.NoError(t, err)
	return doc.BodyLen()
}

func TestCompose_OrderAndCount(t *testing.T) {
	composer := New(newStore(t), WithLogger(zaptest.NewLogger(t)))

	for _, n := range []int{0, 1, 2, 5} {
		result, err := composer.Compose(context.Background(), testRecord(), manifest(t, n))
		require.NoError(t, err)

		coverElements := bodyLen(t, testutil.CoverTemplate(2))
		sheetElements := bodyLen(t, testutil.ExhibitTemplate(1))
		closingElements := bodyLen(t, testutil.ClosingTemplate(3))

		assert.Equal(t, coverElements+n*sheetElements+closingElements, result.Elements, "exhibits=%d", n)
		require.Len(t, result.Sections, n+2)
		assert.Equal(t, casefile.TemplateCover, result.Sections[0].Template)
		assert.Equal(t, casefile.TemplateClosing, result.Sections[n+1].Template)
		for i := 0; i < n; i++ {
			assert.Equal(t, string(rune('a'+i)), result.Sections[i+1].Letter)
		}

		doc, err := docx.Open(result.Data)
		require.NoError(t, err)
		assert.Equal(t, result.Elements, doc.BodyLen())
	}
}

func TestCompose_Content(t *testing.T) {
	result, err := New(newStore(t)).Compose(context.Background(), testRecord(), manifest(t, 2))
	require.NoError(t, err)

	doc, err := docx.Open(result.Data)
	require.NoError(t, err)
	paragraphs := doc.Paragraphs()

	var sheets []string
	for _, p := range paragraphs {
		if len(p) > 15 && p[:15] == "This is Exhibit" {
			sheets = append(sheets, p)
		}
	}
	assert.Equal(t, []string{`This is Exhibit "a"`, `This is Exhibit "b"`}, sheets)

	assert.Equal(t, "AFFIDAVIT OF JANE DOE", paragraphs[0])
	assert.Contains(t, paragraphs, "JANE DOE, Witness for Doe Holdings Ltd.")
	assert.Contains(t, paragraphs, "I, JANE DOE, of 1 Main St, the witness in this matter, Affirmed as follows:")
	assert.Equal(t, "cover(8) a(5) b(5) closing(6)", result.String())
}

func TestCompose_Margins(t *testing.T) {
	result, err := New(newStore(t)).Compose(context.Background(), testRecord(), manifest(t, 3))
	require.NoError(t, err)

	require.Len(t, result.Margins, 5)
	for i, m := range result.Margins {
		assert.Equal(t, docx.Uniform(1440), m, "section %d", i)
	}

	doc, err := docx.Open(result.Data)
	require.NoError(t, err)
	assert.Equal(t, result.Margins, doc.SectionMargins())
}

func TestCompose_Deterministic(t *testing.T) {
	composer := New(newStore(t))
	first, err := composer.Compose(context.Background(), testRecord(), manifest(t, 2))
	require.NoError(t, err)
	second, err := composer.Compose(context.Background(), testRecord(), manifest(t, 2))
	require.NoError(t, err)

	a, err := docx.Open(first.Data)
	require.NoError(t, err)
	b, err := docx.Open(second.Data)
	require.NoError(t, err)

	aXML, err := a.BodyXML()
	require.NoError(t, err)
	bXML, err := b.BodyXML()
	require.NoError(t, err)
	if diff := cmp.Diff(aXML, bXML); diff != "" {
		t.Errorf("compose is not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Data, second.Data)
}

// failingRenderer fails when rendering the nth exhibit sheet
type failingRenderer struct {
	templates.Renderer
	failSheet int
	sheets    int
}

func (f *failingRenderer) Render(ctx context.Context, c casefile.Context) (*docx.Document, error) {
	if c.TemplateID() == casefile.TemplateExhibit {
		f.sheets++
		if f.sheets-1 == f.failSheet {
			return nil, aerrors.MissingPlaceholder(casefile.TemplateExhibit, []string{"letter"})
		}
	}
	return f.Renderer.Render(ctx, c)
}

func TestCompose_AbortsOnRenderFailure(t *testing.T) {
	renderer := &failingRenderer{Renderer: newStore(t), failSheet: 1}

	result, err := New(renderer).Compose(context.Background(), testRecord(), manifest(t, 3))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, aerrors.ErrMissingPlaceholder))

	var ae *aerrors.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, aerrors.StageExhibit, ae.Stage)
	assert.Equal(t, 1, ae.EntryIndex)
}

func TestCompose_MissingPlaceholderInTemplate(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTemplates(t, dir, 1, 1, 1)
	testutil.WriteFile(t, dir, testutil.ClosingFile, testutil.NewDocx().Paragraph("{{notary_seal}}").Bytes())
	store, err := templates.NewStore(dir)
	require.NoError(t, err)

	result, err := New(store).Compose(context.Background(), testRecord(), manifest(t, 1))
	require.Error(t, err)
	assert.Nil(t, result)

	var ae *aerrors.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, aerrors.ErrorTypeMissingPlaceholder, ae.Type)
	assert.Equal(t, aerrors.StageClosing, ae.Stage)
	assert.Equal(t, []string{"notary_seal"}, ae.Missing)
}

func TestCompose_InvalidRecord(t *testing.T) {
	record := testRecord()
	record.Email = ""

	_, err := New(newStore(t)).Compose(context.Background(), record, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrInvalidInput))
}

func TestCompose_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newStore(t)).Compose(ctx, testRecord(), manifest(t, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
