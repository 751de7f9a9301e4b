package document

import (
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

var (
	japaneseOnce      sync.Once
	japaneseTokenizer *tokenizer.Tokenizer
	japaneseErr       error
)

// loadJapaneseTokenizer 词典较大，只在第一次使用时加载
func loadJapaneseTokenizer() (*tokenizer.Tokenizer, error) {
	japaneseOnce.Do(func() {
		japaneseTokenizer, japaneseErr = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	})
	return japaneseTokenizer, japaneseErr
}

// JapaneseSplitter 日文切分器
// 句子按「。！？」切分，词使用kagome形态素分析
type JapaneseSplitter struct {
	*TextSplitter
	tokenizer *tokenizer.Tokenizer
}

// NewJapaneseSplitter 创建日文切分器
func NewJapaneseSplitter() (*JapaneseSplitter, error) {
	t, err := loadJapaneseTokenizer()
	if err != nil {
		return nil, err
	}
	return &JapaneseSplitter{
		TextSplitter: NewTextSplitter(SplitterConfig{
			Terminators: ".!?",
			FullStops:   "。！？",
		}),
		tokenizer: t,
	}, nil
}

// Words 返回形态素的表层形式，忽略空白
func (s *JapaneseSplitter) Words(text string) []string {
	tokens := s.tokenizer.Tokenize(text)
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		surface := strings.TrimSpace(tok.Surface)
		if surface == "" {
			continue
		}
		words = append(words, surface)
	}
	return words
}

// JoinWords 日文词之间不加空格
func (s *JapaneseSplitter) JoinWords(words []string) string {
	return strings.Join(words, "")
}
