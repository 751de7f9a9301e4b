package transform

import (
	"fmt"
	"strings"
)

// ParagraphResult 一个输出段落
type ParagraphResult struct {
	Text         string   `json:"text"`
	FootnoteRefs []string `json:"footnote_refs"`
}

// TermCandidate 模型提出的新词条
type TermCandidate struct {
	Term          string `json:"term"`
	Translation   string `json:"translation"`
	Explanation   string `json:"explanation"`
	Category      string `json:"category"`
	GrammarNote   string `json:"grammar_note"`
	Pronunciation string `json:"pronunciation"`
	NativeScript  string `json:"native_script"`
}

// GenerationResult 一次生成调用的结果
type GenerationResult struct {
	Paragraphs []ParagraphResult `json:"paragraphs"`
	NewTerms   []TermCandidate   `json:"new_terms"`
}

// Text 将所有段落文本以空格拼接
func (r *GenerationResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Paragraphs))
	for _, p := range r.Paragraphs {
		parts = append(parts, p.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// CoerceResult 将任意形状的模型输出规整为GenerationResult
// 对象按字段读取，字符串视为一个段落，数组视为段落列表，其他形状得到空结果
func CoerceResult(raw any) *GenerationResult {
	result := &GenerationResult{
		Paragraphs: []ParagraphResult{},
		NewTerms:   []TermCandidate{},
	}

	switch v := raw.(type) {
	case map[string]any:
		result.Paragraphs = coerceParagraphs(v["paragraphs"])
		result.NewTerms = coerceTerms(v["new_terms"])
	case string:
		if text := strings.TrimSpace(v); text != "" {
			result.Paragraphs = append(result.Paragraphs, ParagraphResult{Text: text, FootnoteRefs: []string{}})
		}
	case []any:
		for _, item := range v {
			switch p := item.(type) {
			case string:
				if text := strings.TrimSpace(p); text != "" {
					result.Paragraphs = append(result.Paragraphs, ParagraphResult{Text: text, FootnoteRefs: []string{}})
				}
			case map[string]any:
				result.Paragraphs = append(result.Paragraphs, coerceParagraph(p))
			}
		}
	}
	return result
}

func coerceParagraphs(raw any) []ParagraphResult {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []ParagraphResult{}
	case []any:
		items = v
	default:
		items = []any{v}
	}

	out := make([]ParagraphResult, 0, len(items))
	for _, item := range items {
		switch p := item.(type) {
		case string:
			out = append(out, ParagraphResult{Text: p, FootnoteRefs: []string{}})
		case map[string]any:
			out = append(out, coerceParagraph(p))
		}
	}
	return out
}

func coerceParagraph(m map[string]any) ParagraphResult {
	return ParagraphResult{
		Text:         stringValue(m["text"]),
		FootnoteRefs: NormalizeFootnoteRefs(m["footnote_refs"]),
	}
}

// NormalizeFootnoteRefs 规整脚注引用：接受数组、字符串或其他值，清理花括号和竖线，段内去重
func NormalizeFootnoteRefs(raw any) []string {
	var refs []any
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []any:
		refs = v
	case []string:
		for _, s := range v {
			refs = append(refs, s)
		}
	default:
		refs = []any{v}
	}

	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		cleaned := CleanTermToken(stringValue(ref))
		key := TermKey(cleaned)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cleaned)
	}
	return out
}

func coerceTerms(raw any) []TermCandidate {
	items, ok := raw.([]any)
	if !ok {
		return []TermCandidate{}
	}

	out := make([]TermCandidate, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if term := CleanTermToken(t); term != "" {
				out = append(out, stubTerm(term))
			}
		case map[string]any:
			term := CleanTermToken(stringValue(t["term"]))
			if term == "" {
				continue
			}
			out = append(out, TermCandidate{
				Term:          term,
				Translation:   stringValue(t["translation"]),
				Explanation:   stringValue(t["explanation"]),
				Category:      stringValue(t["category"]),
				GrammarNote:   stringValue(t["grammar_note"]),
				Pronunciation: stringValue(t["pronunciation"]),
				NativeScript:  stringValue(t["native_script"]),
			})
		}
	}
	return out
}

// CleanTermToken 去除首尾空白、花括号和单个竖线
func CleanTermToken(value string) string {
	token := strings.TrimSpace(value)
	token = strings.TrimSpace(strings.Trim(token, "{}"))
	token = strings.TrimSpace(strings.TrimPrefix(token, "|"))
	token = strings.TrimSpace(strings.TrimSuffix(token, "|"))
	return token
}

// TermKey 词汇表键：小写并去除首尾空白
func TermKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// stubTerm 为缺失的词条合成占位条目
func stubTerm(term string) TermCandidate {
	return TermCandidate{
		Term:        term,
		Translation: term,
		Category:    "other",
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
