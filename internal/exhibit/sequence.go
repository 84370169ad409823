// Package exhibit orders uploaded exhibit attachments and labels them with
// cover-sheet letters.
package exhibit

import (
	"fmt"
	"strings"

	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
)

// Alphabet is the number of single-letter labels
const Alphabet = 26

// LabelPolicy decides what happens past the last single letter
type LabelPolicy string

const (
	// PolicyReject fails sequencing with more than 26 exhibits
	PolicyReject LabelPolicy = "reject"
	// PolicyExtend continues with two-letter labels: z, aa, ab, ...
	PolicyExtend LabelPolicy = "extend"
)

// ParsePolicy accepts "reject" or "extend"; empty selects extend
func ParsePolicy(s string) (LabelPolicy, error) {
	switch LabelPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyExtend:
		return PolicyExtend, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("invalid exhibit label policy: %s (must be 'reject' or 'extend')", s)
	}
}

// Attachment is an uploaded exhibit file. Its bytes are never modified.
type Attachment struct {
	Name string
	Data []byte
}

// ManifestEntry is one labelled exhibit
type ManifestEntry struct {
	SequenceIndex int        `json:"sequence_index"`
	Letter        string     `json:"letter"`
	Source        Attachment `json:"-"`
}

// UpperLetter is the label as printed on fixed-layout cover sheets
func (e ManifestEntry) UpperLetter() string {
	return strings.ToUpper(e.Letter)
}

// Label returns the lower-case label of the exhibit at index
func Label(index int, policy LabelPolicy) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("exhibit index cannot be negative: %d", index)
	}
	if index < Alphabet {
		return string(rune('a' + index)), nil
	}
	if policy != PolicyExtend {
		return "", aerrors.New(aerrors.ErrorTypeExhibitOverflow, aerrors.StageSequence,
			fmt.Sprintf("exhibit %d exceeds the %d available letters", index+1, Alphabet)).WithEntry(index)
	}

	// Bijective base 26: 26 -> aa, 27 -> ab, 701 -> zz, 702 -> aaa
	var label []byte
	for n := index + 1; n > 0; n = (n - 1) / Alphabet {
		label = append([]byte{byte('a' + (n-1)%Alphabet)}, label...)
	}
	return string(label), nil
}

// Checker validates an attachment before it is sequenced
type Checker func(a Attachment) error

// Sequencer builds exhibit manifests
type Sequencer struct {
	policy LabelPolicy
	check  Checker
}

// NewSequencer creates a sequencer. check may be nil.
func NewSequencer(policy LabelPolicy, check Checker) *Sequencer {
	if policy == "" {
		policy = PolicyExtend
	}
	return &Sequencer{policy: policy, check: check}
}

// Policy returns the label policy in use
func (s *Sequencer) Policy() LabelPolicy { return s.policy }

// Sequence labels attachments in upload order. The result has one entry per
// attachment with SequenceIndex equal to its position; nothing is sorted or
// de-duplicated.
func (s *Sequencer) Sequence(files []Attachment) ([]ManifestEntry, error) {
	if s.policy == PolicyReject && len(files) > Alphabet {
		return nil, aerrors.New(aerrors.ErrorTypeExhibitOverflow, aerrors.StageSequence,
			fmt.Sprintf("%d exhibits supplied, at most %d can be labelled", len(files), Alphabet))
	}

	entries := make([]ManifestEntry, len(files))
	for i, f := range files {
		if s.check != nil {
			if err := s.check(f); err != nil {
				return nil, aerrors.Wrap(aerrors.ErrorTypeInvalidInput, aerrors.StageSequence,
					fmt.Sprintf("exhibit %q is not a usable PDF", f.Name), err).WithEntry(i)
			}
		}
		letter, err := Label(i, s.policy)
		if err != nil {
			return nil, err
		}
		entries[i] = ManifestEntry{SequenceIndex: i, Letter: letter, Source: f}
	}
	return entries, nil
}
