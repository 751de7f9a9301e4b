package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zzappa/gradient-reading/internal/models"
	"gorm.io/datatypes"
)

// EmptyVocabularyListing 词汇表为空时的占位文本
const EmptyVocabularyListing = "(none yet)"

// Tracker 一次运行内已引入的词汇
// 同一个键只保留第一次引入的条目
type Tracker struct {
	entries map[string]models.VocabularyEntry
	order   []string
}

// NewTracker 创建空的词汇追踪器
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]models.VocabularyEntry)}
}

// AddTerms 记录新词条，已存在的键被忽略，返回实际新增的数量
func (t *Tracker) AddTerms(candidates []TermCandidate, level, paragraph int) int {
	added := 0
	for _, c := range candidates {
		key := TermKey(c.Term)
		if key == "" {
			continue
		}
		if _, exists := t.entries[key]; exists {
			continue
		}
		t.entries[key] = models.VocabularyEntry{
			Term:           c.Term,
			Translation:    c.Translation,
			Explanation:    c.Explanation,
			Category:       c.Category,
			GrammarNote:    c.GrammarNote,
			Pronunciation:  c.Pronunciation,
			NativeScript:   c.NativeScript,
			FirstLevel:     level,
			FirstParagraph: paragraph,
		}
		t.order = append(t.order, key)
		added++
	}
	return added
}

// Get 按词查找条目
func (t *Tracker) Get(term string) (models.VocabularyEntry, bool) {
	entry, ok := t.entries[TermKey(term)]
	return entry, ok
}

// Known 词是否已经引入
func (t *Tracker) Known(term string) bool {
	_, ok := t.entries[TermKey(term)]
	return ok
}

// Len 条目数量
func (t *Tracker) Len() int {
	return len(t.order)
}

// KnownTermsListing 按引入顺序列出已知词汇，用于提示词
func (t *Tracker) KnownTermsListing() string {
	if len(t.order) == 0 {
		return EmptyVocabularyListing
	}
	lines := make([]string, 0, len(t.order))
	for _, key := range t.order {
		e := t.entries[key]
		lines = append(lines, fmt.Sprintf("- %s = %s (%s)", e.Term, e.Translation, e.Category))
	}
	return strings.Join(lines, "\n")
}

// Enrich 用词汇表条目补全脚注信息
func (t *Tracker) Enrich(footnotes []models.Footnote) []models.Footnote {
	for i := range footnotes {
		entry, ok := t.Get(footnotes[i].Term)
		if !ok {
			continue
		}
		footnotes[i].Translation = entry.Translation
		footnotes[i].Explanation = entry.Explanation
		footnotes[i].Category = entry.Category
		footnotes[i].GrammarNote = entry.GrammarNote
		footnotes[i].Pronunciation = entry.Pronunciation
		footnotes[i].NativeScript = entry.NativeScript
		footnotes[i].FirstLevel = entry.FirstLevel
	}
	return footnotes
}

// Export 序列化为项目词汇表
func (t *Tracker) Export() (datatypes.JSON, error) {
	data, err := json.Marshal(t.entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Reconcile 返回结果的新词条，并为没有对应词条的脚注引用合成占位条目
func Reconcile(result *GenerationResult) []TermCandidate {
	terms := make([]TermCandidate, 0, len(result.NewTerms))
	known := make(map[string]bool, len(result.NewTerms))
	for _, term := range result.NewTerms {
		terms = append(terms, term)
		known[TermKey(term.Term)] = true
	}

	for _, p := range result.Paragraphs {
		for _, ref := range p.FootnoteRefs {
			key := TermKey(ref)
			if key == "" || known[key] {
				continue
			}
			known[key] = true
			terms = append(terms, stubTerm(ref))
		}
	}
	return terms
}
