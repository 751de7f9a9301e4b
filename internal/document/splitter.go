package document

import (
	"regexp"
	"strings"
	"unicode"
)

// paragraphBreak 段落边界：空行（允许只包含空白字符）
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// UnitSplitter 文本单元切分器
// 段落、句子和词的边界规则因语言而异，编排流程只依赖这个接口
type UnitSplitter interface {
	// Paragraphs 按空行切分段落，去除首尾空白并丢弃空段落
	Paragraphs(text string) []string

	// Sentences 按句末标点切分句子
	Sentences(text string) []string

	// Words 切分为词，用于计数和兜底的硬切分
	Words(text string) []string

	// JoinWords 将词重新拼接为文本
	JoinWords(words []string) string
}

// SplitParagraphs 按空行切分段落
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	parts := paragraphBreak.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// WordCount 使用切分器统计词数
func WordCount(s UnitSplitter, text string) int {
	return len(s.Words(text))
}

// SplitterConfig 切分器配置
type SplitterConfig struct {
	Terminators string // 句末标点，后面必须跟空白才切分
	FullStops   string // 句末标点，无需空白直接切分（如中日文句号）
}

// DefaultSplitterConfig 返回默认切分器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		Terminators: ".!?",
	}
}

// TextSplitter 默认切分器
// 词按空白切分，适用于以空格分词的语言
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本切分器
func NewTextSplitter(config SplitterConfig) *TextSplitter {
	if config.Terminators == "" && config.FullStops == "" {
		config = DefaultSplitterConfig()
	}
	return &TextSplitter{config: config}
}

// Paragraphs 按空行切分段落
func (s *TextSplitter) Paragraphs(text string) []string {
	return SplitParagraphs(text)
}

// Sentences 在句末标点之后切分句子
func (s *TextSplitter) Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case strings.ContainsRune(s.config.FullStops, r):
			sentences = appendTrimmed(sentences, string(runes[start:i+1]))
			start = i + 1
		case strings.ContainsRune(s.config.Terminators, r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			sentences = appendTrimmed(sentences, string(runes[start:i+1]))
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		sentences = appendTrimmed(sentences, string(runes[start:]))
	}
	return sentences
}

// Words 按空白切分词
func (s *TextSplitter) Words(text string) []string {
	return strings.Fields(text)
}

// JoinWords 用空格拼接词
func (s *TextSplitter) JoinWords(words []string) string {
	return strings.Join(words, " ")
}

// RuneSplitter 按字符计词的切分器，用于不以空格分词的中文文本
type RuneSplitter struct {
	*TextSplitter
}

// NewRuneSplitter 创建按字符计词的切分器
func NewRuneSplitter() *RuneSplitter {
	return &RuneSplitter{TextSplitter: NewTextSplitter(SplitterConfig{
		Terminators: ".!?",
		FullStops:   "。！？",
	})}
}

// Words 每个汉字计为一个词，连续的拉丁字符按空白切分
func (s *RuneSplitter) Words(text string) []string {
	var words []string
	var latin strings.Builder
	flush := func() {
		if latin.Len() > 0 {
			words = append(words, latin.String())
			latin.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.Is(unicode.Han, r) || unicode.IsPunct(r) && r > unicode.MaxLatin1:
			flush()
			words = append(words, string(r))
		default:
			latin.WriteRune(r)
		}
	}
	flush()
	return words
}

// JoinWords 汉字直接拼接，拉丁词之间保留空格
func (s *RuneSplitter) JoinWords(words []string) string {
	var b strings.Builder
	prevLatin := false
	for _, w := range words {
		isLatin := !containsCJK(w)
		if isLatin && prevLatin {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		prevLatin = isLatin
	}
	return b.String()
}

// SplitterFor 根据源语言选择切分器
func SplitterFor(lang string) UnitSplitter {
	switch lang {
	case "ja":
		if s, err := NewJapaneseSplitter(); err == nil {
			return s
		}
		return NewRuneSplitter()
	case "zh":
		return NewRuneSplitter()
	default:
		return NewTextSplitter(DefaultSplitterConfig())
	}
}

func appendTrimmed(list []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		list = append(list, s)
	}
	return list
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
