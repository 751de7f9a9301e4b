package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzappa/gradient-reading/internal/models"
)

func TestTracker_AddTerms(t *testing.T) {
	tracker := NewTracker()
	assert.Equal(t, EmptyVocabularyListing, tracker.KnownTermsListing())

	added := tracker.AddTerms([]TermCandidate{
		{Term: "gato", Translation: "cat", Category: "noun"},
		{Term: "casa", Translation: "house", Category: "noun"},
		{Term: "  ", Translation: "ignored"},
	}, 1, 0)
	assert.Equal(t, 2, added)

	// 后续级别再次提出的词不会覆盖首次引入的条目
	added = tracker.AddTerms([]TermCandidate{
		{Term: "Gato", Translation: "kitty", Category: "noun"},
		{Term: "comer", Translation: "to eat", Category: "verb"},
	}, 3, 5)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, tracker.Len())

	entry, ok := tracker.Get("GATO")
	require.True(t, ok)
	assert.Equal(t, "cat", entry.Translation)
	assert.Equal(t, 1, entry.FirstLevel)
	assert.Equal(t, 0, entry.FirstParagraph)

	entry, ok = tracker.Get("comer")
	require.True(t, ok)
	assert.Equal(t, 3, entry.FirstLevel)
	assert.Equal(t, 5, entry.FirstParagraph)

	assert.True(t, tracker.Known(" casa "))
	assert.False(t, tracker.Known("perro"))

	assert.Equal(t,
		"- gato = cat (noun)\n- casa = house (noun)\n- comer = to eat (verb)",
		tracker.KnownTermsListing())
}

func TestTracker_Enrich(t *testing.T) {
	tracker := NewTracker()
	tracker.AddTerms([]TermCandidate{
		{Term: "gato", Translation: "cat", Explanation: "a pet", Category: "noun", Pronunciation: "ˈɡato"},
	}, 2, 0)

	notes := tracker.Enrich([]models.Footnote{
		{Term: "gato", ParagraphIndex: 4},
		{Term: "unknown", ParagraphIndex: 5},
	})
	require.Len(t, notes, 2)
	assert.Equal(t, "cat", notes[0].Translation)
	assert.Equal(t, "a pet", notes[0].Explanation)
	assert.Equal(t, "ˈɡato", notes[0].Pronunciation)
	assert.Equal(t, 2, notes[0].FirstLevel)
	assert.Equal(t, 4, notes[0].ParagraphIndex)
	assert.Empty(t, notes[1].Translation)
}

func TestTracker_Export(t *testing.T) {
	tracker := NewTracker()
	tracker.AddTerms([]TermCandidate{{Term: "Gato", Translation: "cat", Category: "noun"}}, 1, 2)

	data, err := tracker.Export()
	require.NoError(t, err)

	var vocab map[string]models.VocabularyEntry
	require.NoError(t, json.Unmarshal(data, &vocab))
	require.Contains(t, vocab, "gato")
	assert.Equal(t, "Gato", vocab["gato"].Term)
	assert.Equal(t, 1, vocab["gato"].FirstLevel)
	assert.Equal(t, 2, vocab["gato"].FirstParagraph)

	data, err = NewTracker().Export()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
