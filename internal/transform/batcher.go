package transform

import (
	"strings"

	"github.com/zzappa/gradient-reading/internal/document"
)

// 调用规模上限
const (
	DefaultChunkWords = 250 // 每次调用的目标词数
	DefaultCallWords  = 900 // 单次调用的硬上限
)

// Batcher 将级别段打包为调用块
type Batcher struct {
	splitter   document.UnitSplitter
	chunkWords int
	callWords  int
}

// NewBatcher 创建批处理器，非正数使用默认值
func NewBatcher(splitter document.UnitSplitter, chunkWords, callWords int) *Batcher {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	if callWords <= 0 {
		callWords = DefaultCallWords
	}
	return &Batcher{splitter: splitter, chunkWords: chunkWords, callWords: callWords}
}

// WordCount 统计词数
func (b *Batcher) WordCount(text string) int {
	return document.WordCount(b.splitter, text)
}

// Chunk 贪心打包段落，加入下一段会超出chunkWords时先结束当前块
// 不在此阶段拆分段落，单个段落可能超出chunkWords
func (b *Batcher) Chunk(paragraphs []string) [][]string {
	var chunks [][]string
	var current []string
	words := 0

	for _, p := range paragraphs {
		pw := b.WordCount(p)
		if len(current) > 0 && words+pw > b.chunkWords {
			chunks = append(chunks, current)
			current = []string{p}
			words = pw
			continue
		}
		current = append(current, p)
		words += pw
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// FitsSingleCall 块内总词数和每个段落都不超过callWords时可以一次调用
func (b *Batcher) FitsSingleCall(chunk []string) bool {
	if b.WordCount(strings.Join(chunk, "\n\n")) > b.callWords {
		return false
	}
	for _, p := range chunk {
		if b.WordCount(p) > b.callWords {
			return false
		}
	}
	return true
}

// FitsCall 单个文本是否在调用上限内
func (b *Batcher) FitsCall(text string) bool {
	return b.WordCount(text) <= b.callWords
}

// SplitLongParagraph 将超长段落按句子打包为不超过callWords的批次
func (b *Batcher) SplitLongParagraph(paragraph string) []string {
	return b.splitLong(paragraph, b.callWords)
}

func (b *Batcher) splitLong(paragraph string, maxWords int) []string {
	if b.WordCount(paragraph) <= maxWords {
		return []string{paragraph}
	}

	sentences := b.splitter.Sentences(paragraph)
	if len(sentences) <= 1 {
		return b.splitWords(paragraph, maxWords)
	}

	var out []string
	var current []string
	words := 0
	flush := func() {
		if len(current) > 0 {
			out = append(out, b.splitter.JoinWords(current))
			current = nil
			words = 0
		}
	}

	for _, sentence := range sentences {
		sw := b.WordCount(sentence)
		// 单句超出上限，先结束当前批次再按词硬切分
		if sw > maxWords {
			flush()
			out = append(out, b.splitWords(sentence, maxWords)...)
			continue
		}
		if len(current) > 0 && words+sw > maxWords {
			flush()
		}
		current = append(current, sentence)
		words += sw
	}
	flush()
	return out
}

// splitWords 按词硬切分
func (b *Batcher) splitWords(text string, maxWords int) []string {
	words := b.splitter.Words(text)
	var out []string
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, b.splitter.JoinWords(words[start:end]))
	}
	return out
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
