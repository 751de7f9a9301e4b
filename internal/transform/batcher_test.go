package transform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcherChunk(t *testing.T) {
	b := NewBatcher(englishSplitter(), 0, 0)

	paragraphs := []string{
		sentenceOf(100, "a"),
		sentenceOf(100, "b"),
		sentenceOf(100, "c"),
		sentenceOf(400, "d"),
		sentenceOf(10, "e"),
	}
	chunks := b.Chunk(paragraphs)
	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 1)
	assert.Len(t, chunks[2], 1)
	assert.Len(t, chunks[3], 1)

	var rejoined []string
	for _, c := range chunks {
		rejoined = append(rejoined, c...)
	}
	assert.Equal(t, paragraphs, rejoined)

	assert.Empty(t, b.Chunk(nil))
}

func TestBatcherFitsSingleCall(t *testing.T) {
	b := NewBatcher(englishSplitter(), 250, 900)
	assert.True(t, b.FitsSingleCall([]string{sentenceOf(400, "a"), sentenceOf(400, "b")}))
	assert.False(t, b.FitsSingleCall([]string{sentenceOf(901, "a")}))
	assert.False(t, b.FitsSingleCall([]string{sentenceOf(500, "a"), sentenceOf(500, "b")}))
}

func TestSplitLongParagraph(t *testing.T) {
	b := NewBatcher(englishSplitter(), 250, 900)

	t.Run("sentence batches", func(t *testing.T) {
		sentences := make([]string, 200)
		for i := range sentences {
			sentences[i] = sentenceOf(10, fmt.Sprintf("s%d_", i))
		}
		paragraph := strings.Join(sentences, " ")
		require.Equal(t, 2000, b.WordCount(paragraph))

		batches := b.SplitLongParagraph(paragraph)
		assert.GreaterOrEqual(t, len(batches), 3)
		total := 0
		for _, batch := range batches {
			words := b.WordCount(batch)
			assert.LessOrEqual(t, words, 900)
			total += words
		}
		assert.Equal(t, 2000, total)
		assert.Equal(t, paragraph, strings.Join(batches, " "))
	})

	t.Run("no punctuation falls back to word split", func(t *testing.T) {
		paragraph := strings.TrimSuffix(sentenceOf(2000, "w"), ".")
		batches := b.SplitLongParagraph(paragraph)
		require.Len(t, batches, 3)
		assert.Equal(t, 900, b.WordCount(batches[0]))
		assert.Equal(t, 900, b.WordCount(batches[1]))
		assert.Equal(t, 200, b.WordCount(batches[2]))
	})

	t.Run("oversized sentence is hard split", func(t *testing.T) {
		paragraph := sentenceOf(20, "x") + " " + sentenceOf(1000, "y") + " " + sentenceOf(20, "z")
		batches := b.SplitLongParagraph(paragraph)
		require.Len(t, batches, 4)
		assert.Equal(t, 20, b.WordCount(batches[0]))
		assert.Equal(t, 900, b.WordCount(batches[1]))
		assert.Equal(t, 100, b.WordCount(batches[2]))
		assert.Equal(t, 20, b.WordCount(batches[3]))
	})

	t.Run("every batch stays within a small cap", func(t *testing.T) {
		small := NewBatcher(englishSplitter(), 5, 12)
		paragraph := strings.Join([]string{
			sentenceOf(4, "a"), sentenceOf(30, "b"), sentenceOf(7, "c"), sentenceOf(6, "d"), sentenceOf(13, "e"),
		}, " ")

		batches := small.SplitLongParagraph(paragraph)
		for _, batch := range batches {
			assert.LessOrEqual(t, small.WordCount(batch), 12)
		}
		assert.Equal(t, []int{4, 12, 12, 6, 7, 6, 12, 1}, wordCounts(small, batches))
		assert.Equal(t, paragraph, strings.Join(batches, " "))
	})

	t.Run("short paragraph untouched", func(t *testing.T) {
		assert.Equal(t, []string{"Short. Text."}, b.SplitLongParagraph("Short. Text."))
	})
}

func wordCounts(b *Batcher, batches []string) []int {
	counts := make([]int, len(batches))
	for i, batch := range batches {
		counts[i] = b.WordCount(batch)
	}
	return counts
}
