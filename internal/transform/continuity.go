package transform

import (
	"strings"

	"github.com/zzappa/gradient-reading/internal/document"
)

// DefaultTailWords 连续性上下文的词数上限
const DefaultTailWords = 140

// Continuity 最近生成文本的滚动窗口，只作为上下文提供给后续调用
type Continuity struct {
	splitter document.UnitSplitter
	maxWords int
	tail     string
}

// NewContinuity 创建连续性窗口
func NewContinuity(splitter document.UnitSplitter, maxWords int) *Continuity {
	if maxWords <= 0 {
		maxWords = DefaultTailWords
	}
	return &Continuity{splitter: splitter, maxWords: maxWords}
}

// Update 追加新生成的文本并保留最后maxWords个词
// 窗口按空白切分的片段保留原文，切分器只用于计数和截断最早的片段，
// 日文源文本的运行中拉丁文字输出的空格不会丢失
func (c *Continuity) Update(text string) {
	tokens := strings.Fields(c.tail + " " + text)

	kept := make([]string, 0, len(tokens))
	words := 0
	for i := len(tokens) - 1; i >= 0; i-- {
		units := c.splitter.Words(tokens[i])
		if words+len(units) > c.maxWords {
			if room := c.maxWords - words; room > 0 {
				kept = append(kept, c.splitter.JoinWords(units[len(units)-room:]))
			}
			break
		}
		kept = append(kept, tokens[i])
		words += len(units)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	c.tail = strings.Join(kept, " ")
}

// Tail 当前窗口内容
func (c *Continuity) Tail() string {
	return c.tail
}
