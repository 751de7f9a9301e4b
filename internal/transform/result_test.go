package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCoerceResult(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		result := CoerceResult(decode(t, `{
			"paragraphs": [
				{"text": "El {{gato|gato}} duerme.", "footnote_refs": ["{gato}", "gato", "|perro|"]},
				"plain paragraph",
				42
			],
			"new_terms": [
				{"term": "{{gato}}", "translation": "cat", "category": "noun"},
				"perro",
				{"term": "  "},
				7
			]
		}`))

		require.Len(t, result.Paragraphs, 2)
		assert.Equal(t, "El {{gato|gato}} duerme.", result.Paragraphs[0].Text)
		assert.Equal(t, []string{"gato", "perro"}, result.Paragraphs[0].FootnoteRefs)
		assert.Equal(t, "plain paragraph", result.Paragraphs[1].Text)
		assert.Empty(t, result.Paragraphs[1].FootnoteRefs)

		require.Len(t, result.NewTerms, 2)
		assert.Equal(t, "gato", result.NewTerms[0].Term)
		assert.Equal(t, "cat", result.NewTerms[0].Translation)
		assert.Equal(t, TermCandidate{Term: "perro", Translation: "perro", Category: "other"}, result.NewTerms[1])
	})

	t.Run("bare string", func(t *testing.T) {
		result := CoerceResult("  just text  ")
		require.Len(t, result.Paragraphs, 1)
		assert.Equal(t, "just text", result.Paragraphs[0].Text)
		assert.Empty(t, result.NewTerms)

		assert.Empty(t, CoerceResult("   ").Paragraphs)
	})

	t.Run("bare list", func(t *testing.T) {
		result := CoerceResult(decode(t, `["one", "", {"text": "two", "footnote_refs": "dos"}, 3]`))
		require.Len(t, result.Paragraphs, 2)
		assert.Equal(t, "one", result.Paragraphs[0].Text)
		assert.Equal(t, "two", result.Paragraphs[1].Text)
		assert.Equal(t, []string{"dos"}, result.Paragraphs[1].FootnoteRefs)
	})

	t.Run("other shapes", func(t *testing.T) {
		for _, raw := range []any{nil, 3.14, true} {
			result := CoerceResult(raw)
			assert.Empty(t, result.Paragraphs)
			assert.Empty(t, result.NewTerms)
		}
	})

	t.Run("non-list paragraphs and odd text values", func(t *testing.T) {
		result := CoerceResult(decode(t, `{"paragraphs": {"text": 12, "footnote_refs": null}}`))
		require.Len(t, result.Paragraphs, 1)
		assert.Equal(t, "12", result.Paragraphs[0].Text)
		assert.Empty(t, result.Paragraphs[0].FootnoteRefs)
	})
}

func TestCleanTermToken(t *testing.T) {
	cases := map[string]string{
		"gato":         "gato",
		" {{gato}} ":   "gato",
		"|gato":        "gato",
		"gato|":        "gato",
		"{ | gato | }": "gato",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTermToken(in), "input %q", in)
	}
}

func TestNormalizeAnnotations(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "El {{gato|gato}} come.", "El {{gato|gato}} come."},
		{"stray brace before base", "El {{gato|}gato} come.", "El {{gato|gato}} come."},
		{"missing closing brace", "El {{gato|gato} come.", "El {{gato|gato}} come."},
		{"native form", "{{yego|on|его}} dom", "{{yego|on|его}} dom"},
		{"stray brace before native", "{{yego|on|}его}} dom", "{{yego|on|его}} dom"},
		{"empty native dropped", "{{dom|dom|}} stoit", "{{dom|dom}} stoit"},
		{"no annotations", "plain text", "plain text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAnnotations(tc.in))
		})
	}
}

func TestReconcile(t *testing.T) {
	result := &GenerationResult{
		Paragraphs: []ParagraphResult{
			{Text: "a", FootnoteRefs: []string{"Gato", "casa"}},
			{Text: "b", FootnoteRefs: []string{"CASA", "perro"}},
		},
		NewTerms: []TermCandidate{{Term: "gato", Translation: "cat", Category: "noun"}},
	}

	terms := Reconcile(result)
	require.Len(t, terms, 3)
	assert.Equal(t, "cat", terms[0].Translation)
	assert.Equal(t, TermCandidate{Term: "casa", Translation: "casa", Category: "other"}, terms[1])
	assert.Equal(t, TermCandidate{Term: "perro", Translation: "perro", Category: "other"}, terms[2])
}
