package exhibit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
)

func attachments(n int) []Attachment {
	out := make([]Attachment, n)
	for i := range out {
		out[i] = Attachment{Name: fmt.Sprintf("exhibit-%d.pdf", i), Data: []byte{byte(i)}}
	}
	return out
}

func TestSequence_UpToAlphabet(t *testing.T) {
	for _, policy := range []LabelPolicy{PolicyReject, PolicyExtend} {
		for n := 0; n <= Alphabet; n++ {
			t.Run(fmt.Sprintf("%s/%d", policy, n), func(t *testing.T) {
				entries, err := NewSequencer(policy, nil).Sequence(attachments(n))
				require.NoError(t, err)
				require.Len(t, entries, n)

				for i, e := range entries {
					assert.Equal(t, i, e.SequenceIndex)
					assert.Equal(t, string(rune('a'+i)), e.Letter)
					assert.Equal(t, fmt.Sprintf("exhibit-%d.pdf", i), e.Source.Name)
					if i > 0 {
						assert.Less(t, entries[i-1].Letter, e.Letter)
					}
				}
			})
		}
	}
}

func TestSequence_KeepsUploadOrder(t *testing.T) {
	files := []Attachment{{Name: "z.pdf"}, {Name: "a.pdf"}, {Name: "z.pdf"}}
	entries, err := NewSequencer(PolicyExtend, nil).Sequence(files)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Source.Name)
	}
	assert.Equal(t, []string{"z.pdf", "a.pdf", "z.pdf"}, names)
}

func TestSequence_Overflow(t *testing.T) {
	_, err := NewSequencer(PolicyReject, nil).Sequence(attachments(Alphabet + 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrExhibitOverflow))

	entries, err := NewSequencer(PolicyExtend, nil).Sequence(attachments(Alphabet + 3))
	require.NoError(t, err)
	assert.Equal(t, "z", entries[25].Letter)
	assert.Equal(t, "aa", entries[26].Letter)
	assert.Equal(t, "ab", entries[27].Letter)
	assert.Equal(t, "ac", entries[28].Letter)
}

func TestSequence_CheckFailure(t *testing.T) {
	check := func(a Attachment) error {
		if a.Name == "exhibit-1.pdf" {
			return errors.New("not a pdf")
		}
		return nil
	}

	_, err := NewSequencer(PolicyExtend, check).Sequence(attachments(3))
	require.Error(t, err)

	var ae *aerrors.AssemblyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, aerrors.ErrorTypeInvalidInput, ae.Type)
	assert.Equal(t, aerrors.StageSequence, ae.Stage)
	assert.Equal(t, 1, ae.EntryIndex)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "a"},
		{25, "z"},
		{26, "aa"},
		{51, "az"},
		{52, "ba"},
		{701, "zz"},
		{702, "aaa"},
	}
	for _, tt := range tests {
		got, err := Label(tt.index, PolicyExtend)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "index %d", tt.index)
	}

	_, err := Label(26, PolicyReject)
	assert.True(t, errors.Is(err, aerrors.ErrExhibitOverflow))

	_, err = Label(-1, PolicyExtend)
	assert.Error(t, err)
}

func TestExtendedLabelsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		label, err := Label(i, PolicyExtend)
		require.NoError(t, err)
		require.False(t, seen[label], "duplicate label %s at %d", label, i)
		seen[label] = true
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExtend, p)

	p, err = ParsePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParsePolicy("wrap")
	assert.Error(t, err)
}

func TestUpperLetter(t *testing.T) {
	assert.Equal(t, "AB", ManifestEntry{Letter: "ab"}.UpperLetter())
}
