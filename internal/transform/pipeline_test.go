package transform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator 按调用序号返回脚本化结果，并记录所有请求
type stubGenerator struct {
	fn       func(call int, req TransformRequest) (*GenerationResult, error)
	requests []TransformRequest
}

func (g *stubGenerator) Transform(_ context.Context, req TransformRequest) (*GenerationResult, error) {
	g.requests = append(g.requests, req)
	return g.fn(len(g.requests), req)
}

// echo 把输入段落原样返回
func echo(_ int, req TransformRequest) (*GenerationResult, error) {
	result := &GenerationResult{}
	for _, para := range strings.Split(req.Text, "\n\n") {
		result.Paragraphs = append(result.Paragraphs, ParagraphResult{Text: para})
	}
	return result, nil
}

func newTestPipeline(t *testing.T, gen Generator, target string) *Pipeline {
	p, err := NewPipeline(gen, Options{TargetLanguage: target, SourceLanguage: "en"}, logrus.New())
	require.NoError(t, err)
	return p
}

func TestNewPipeline(t *testing.T) {
	_, err := NewPipeline(nil, Options{TargetLanguage: "es", SourceLanguage: "en"}, nil)
	assert.Error(t, err)

	_, err = NewPipeline(&stubGenerator{fn: echo}, Options{TargetLanguage: "xx", SourceLanguage: "en"}, nil)
	assert.Error(t, err)

	_, err = NewPipeline(&stubGenerator{fn: echo}, Options{TargetLanguage: "es", SourceLanguage: "en", Weights: []float64{1, 2}}, nil)
	assert.Error(t, err)
}

func TestPipeline_Plan(t *testing.T) {
	p := newTestPipeline(t, &stubGenerator{fn: echo}, "es")

	var paras []string
	for i := 0; i < 14; i++ {
		paras = append(paras, sentenceOf(50, "w"))
	}
	segments := p.Plan(strings.Join(paras, "\n\n"))
	require.Len(t, segments, 7)
	for i, seg := range segments {
		assert.Equal(t, i+1, seg.Level)
		assert.NotEmpty(t, seg.Paragraphs)
	}
	assert.Equal(t, paras, flatten(segments))
}

func TestPipeline_ProcessSegment(t *testing.T) {
	ctx := context.Background()

	t.Run("empty segment", func(t *testing.T) {
		gen := &stubGenerator{fn: echo}
		out, err := newTestPipeline(t, gen, "es").ProcessSegment(ctx, Segment{Level: 1})
		require.NoError(t, err)
		assert.Empty(t, out.Paragraphs)
		assert.Empty(t, out.Footnotes)
		assert.Empty(t, gen.requests)
	})

	t.Run("oversized paragraph keeps one slot", func(t *testing.T) {
		sentences := make([]string, 200)
		for i := range sentences {
			sentences[i] = sentenceOf(10, "w")
		}
		para := strings.Join(sentences, " ")

		gen := &stubGenerator{fn: echo}
		out, err := newTestPipeline(t, gen, "es").ProcessSegment(ctx, Segment{Level: 2, Paragraphs: []string{para}})
		require.NoError(t, err)

		require.Len(t, out.Paragraphs, 1)
		assert.GreaterOrEqual(t, out.Calls, 3)
		assert.Len(t, gen.requests, out.Calls)
		for _, req := range gen.requests {
			assert.LessOrEqual(t, len(strings.Fields(req.Text)), DefaultCallWords)
		}
		assert.Len(t, strings.Fields(out.Paragraphs[0]), 2000)
		// 后续批次带有前一批次的连续性上下文
		assert.Contains(t, gen.requests[1].SystemPrompt, ContinuityHeader)
	})

	t.Run("missing term gets stub footnote", func(t *testing.T) {
		gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
			return &GenerationResult{
				Paragraphs: []ParagraphResult{{Text: "The {{perro|perro}} barked.", FootnoteRefs: []string{"perro"}}},
			}, nil
		}}
		p := newTestPipeline(t, gen, "es")
		out, err := p.ProcessSegment(ctx, Segment{Level: 1, Paragraphs: []string{"The dog barked."}})
		require.NoError(t, err)

		require.Len(t, out.Footnotes, 1)
		note := out.Footnotes[0]
		assert.Equal(t, "perro", note.Term)
		assert.Equal(t, "perro", note.Translation)
		assert.Equal(t, "other", note.Category)
		assert.Equal(t, 0, note.ParagraphIndex)
		assert.Equal(t, 1, note.FirstLevel)
		assert.True(t, p.Tracker().Known("perro"))
	})

	t.Run("first introduction wins across chunks", func(t *testing.T) {
		gen := &stubGenerator{fn: func(call int, req TransformRequest) (*GenerationResult, error) {
			translation := "cat"
			if call > 1 {
				translation = "kitty"
			}
			return &GenerationResult{
				Paragraphs: []ParagraphResult{{Text: "El {{gato|gato}}.", FootnoteRefs: []string{"gato"}}},
				NewTerms:   []TermCandidate{{Term: "gato", Translation: translation, Category: "noun"}},
			}, nil
		}}
		p := newTestPipeline(t, gen, "es")
		out, err := p.ProcessSegment(ctx, Segment{Level: 3, Paragraphs: []string{sentenceOf(200, "a"), sentenceOf(200, "b")}})
		require.NoError(t, err)

		require.Len(t, gen.requests, 2)
		assert.Contains(t, gen.requests[1].SystemPrompt, "- gato = cat (noun)")
		assert.Contains(t, gen.requests[1].SystemPrompt, ContinuityHeader)
		assert.NotContains(t, gen.requests[0].SystemPrompt, ContinuityHeader)

		require.Len(t, out.Paragraphs, 2)
		require.Len(t, out.Footnotes, 2)
		assert.Equal(t, 0, out.Footnotes[0].ParagraphIndex)
		assert.Equal(t, 1, out.Footnotes[1].ParagraphIndex)
		for _, note := range out.Footnotes {
			assert.Equal(t, "cat", note.Translation)
		}
	})

	t.Run("term position is its first referencing paragraph", func(t *testing.T) {
		gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
			return &GenerationResult{
				Paragraphs: []ParagraphResult{
					{Text: "The dog slept."},
					{Text: "The {{gato|gato}} woke.", FootnoteRefs: []string{"gato"}},
					{Text: "The {{gato|gato}} and the {{perro|perro}} ran.", FootnoteRefs: []string{"gato", "perro"}},
				},
				NewTerms: []TermCandidate{
					{Term: "gato", Translation: "cat"},
					{Term: "casa", Translation: "house"},
				},
			}, nil
		}}
		p := newTestPipeline(t, gen, "es")
		_, err := p.ProcessSegment(ctx, Segment{Level: 2, Paragraphs: []string{"The dog slept.", "The cat woke.", "The cat and the dog ran."}})
		require.NoError(t, err)
		require.Len(t, gen.requests, 1)

		gato, ok := p.Tracker().Get("gato")
		require.True(t, ok)
		assert.Equal(t, 1, gato.FirstParagraph)

		perro, ok := p.Tracker().Get("perro")
		require.True(t, ok)
		assert.Equal(t, 2, perro.FirstParagraph)

		// 没有脚注引用的词条落在块的第一个段落
		casa, ok := p.Tracker().Get("casa")
		require.True(t, ok)
		assert.Equal(t, 0, casa.FirstParagraph)
	})

	t.Run("paragraph count mismatch is accepted", func(t *testing.T) {
		gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
			return CoerceResult([]any{"uno", "dos", "tres"}), nil
		}}
		out, err := newTestPipeline(t, gen, "es").ProcessSegment(ctx, Segment{Level: 1, Paragraphs: []string{"One.", "Two."}})
		require.NoError(t, err)
		assert.Equal(t, []string{"uno", "dos", "tres"}, out.Paragraphs)
		assert.Equal(t, "uno\n\ndos\n\ntres", out.Content())
	})

	t.Run("annotations are normalized", func(t *testing.T) {
		gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
			return CoerceResult("El {{gato|}gato} duerme."), nil
		}}
		out, err := newTestPipeline(t, gen, "es").ProcessSegment(ctx, Segment{Level: 1, Paragraphs: []string{"The cat sleeps."}})
		require.NoError(t, err)
		assert.Equal(t, []string{"El {{gato|gato}} duerme."}, out.Paragraphs)
	})

	t.Run("quality retry replaces native script output", func(t *testing.T) {
		gen := &stubGenerator{fn: func(_ int, req TransformRequest) (*GenerationResult, error) {
			if strings.Contains(req.SystemPrompt, QualityHintHeader) {
				return CoerceResult("{{on|on|он}} {{prishyol|priyti|пришёл}}."), nil
			}
			return CoerceResult("Он пришёл."), nil
		}}
		out, err := newTestPipeline(t, gen, "ru").ProcessSegment(ctx, Segment{Level: 4, Paragraphs: []string{"He came."}})
		require.NoError(t, err)

		assert.Equal(t, 2, out.Calls)
		assert.Equal(t, []string{"{{on|on|он}} {{prishyol|priyti|пришёл}}."}, out.Paragraphs)
	})

	t.Run("failed quality retry keeps first result", func(t *testing.T) {
		gen := &stubGenerator{fn: func(call int, _ TransformRequest) (*GenerationResult, error) {
			if call > 1 {
				return nil, errors.New("unavailable")
			}
			return CoerceResult("Он пришёл."), nil
		}}
		out, err := newTestPipeline(t, gen, "ru").ProcessSegment(ctx, Segment{Level: 4, Paragraphs: []string{"He came."}})
		require.NoError(t, err)

		assert.Equal(t, 2, out.Calls)
		assert.Equal(t, []string{"Он пришёл."}, out.Paragraphs)
	})

	t.Run("generation failure aborts segment", func(t *testing.T) {
		gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
			return nil, errors.New("unavailable")
		}}
		_, err := newTestPipeline(t, gen, "es").ProcessSegment(ctx, Segment{Level: 1, Paragraphs: []string{"The cat sleeps."}})
		assert.Error(t, err)
	})
}

func TestPipeline_JapaneseSourceKeepsContinuitySpacing(t *testing.T) {
	const reply = "The old cat sat quietly on the warm mat."
	gen := &stubGenerator{fn: func(int, TransformRequest) (*GenerationResult, error) {
		return &GenerationResult{Paragraphs: []ParagraphResult{{Text: reply}}}, nil
	}}
	p, err := NewPipeline(gen, Options{TargetLanguage: "en", SourceLanguage: "ja"}, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.ProcessSegment(ctx, Segment{Level: 6, Paragraphs: []string{"猫が座った。", "犬が走った。"}})
	require.NoError(t, err)
	assert.Equal(t, reply, p.continuity.Tail())

	_, err = p.ProcessSegment(ctx, Segment{Level: 7, Paragraphs: []string{"鳥が鳴いた。"}})
	require.NoError(t, err)
	require.Len(t, gen.requests, 2)
	assert.Contains(t, gen.requests[1].SystemPrompt, reply)
	assert.Equal(t, reply+" "+reply, p.continuity.Tail())
}
