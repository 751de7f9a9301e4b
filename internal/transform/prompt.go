package transform

import (
	"fmt"
	"strings"

	"github.com/zzappa/gradient-reading/internal/languages"
	"github.com/zzappa/gradient-reading/internal/models"
)

// 提示词中的固定标题
const (
	KnownTermsHeader  = "ALREADY INTRODUCED TERMS (do NOT add to footnote_refs or new_terms again):"
	ContinuityHeader  = "CONTINUITY CONTEXT (previous chunk; do not transform; use only for consistent voice/details):"
	QualityHintHeader = "QUALITY CORRECTION (must follow):"
)

// PromptInput 构建系统提示词所需的信息
type PromptInput struct {
	Level          int    // 目标级别，0-7
	TargetLanguage string // 目标语言代码
	SourceLanguage string // 源语言代码
	KnownTerms     string // 已知词汇列表，见Tracker.KnownTermsListing
	ContinuityTail string // 上一段生成文本的尾部
	QualityHint    string // 纠正性重试的附加指令
}

var levelRubrics = map[int]string{
	0: "Target-language share: 0%. Return the source text unchanged.",
	1: "Target-language share: about 3-7% of tokens.\n" +
		"Swap in a handful of easy, frequent content words (roughly 3-8 per 300 source words).\n" +
		"Keep every sentence structure as it is.",
	2: "Target-language share: about 10-18% of tokens.\n" +
		"Light code-switching that stays easy to read (roughly 8-16 new content words per 300 words).",
	3: "Target-language share: about 25-40% of tokens.\n" +
		"Let word order start drifting toward the target and introduce basic inflection.",
	4: "Target-language share: about 50-65% of tokens.\n" +
		"The target language carries the text; the source language is scaffolding.",
	5: "Target-language share: about 70-82% of tokens.\n" +
		"Keep source-language support only for rare or complex passages.",
	6: "Target-language share: about 90-97% of tokens.\n" +
		"Graded-reader prose: short sentences, shallow clauses, no idioms, frequent vocabulary.",
	7: "Target-language share: about 99-100% of tokens.\n" +
		"Natural target-language prose. Only proper nouns stay in the source language.",
}

var romanizationStandards = map[string]string{
	"ja": "Hepburn romanization in plain ASCII. No macrons; write long vowels the same way every time.",
	"zh": "Hanyu Pinyin without tone marks or tone numbers. Keep spacing and hyphenation consistent.",
	"ko": "Revised Romanization. Keep vowel spellings (eo, eu, ae, oe, ui) stable; no breves.",
	"ru": "One practical transliteration (zh, kh, ts, ch, sh, shch, yu, ya, yo). No haceks or diaeresis.",
	"he": "One learner-friendly transliteration (sh, tz, consistent ch/kh). No underdots or ayin/alef marks.",
	"ar": "One practical transliteration (sh, kh, gh, th, dh, q). No underdots or ayin/hamza marks.",
}

// BuildPrompt 构建转换调用的系统提示词
func BuildPrompt(in PromptInput) (string, error) {
	if in.Level < 0 || in.Level > models.TransformLevels {
		return "", fmt.Errorf("level must be between 0 and %d, got %d", models.TransformLevels, in.Level)
	}
	target, err := languages.Get(in.TargetLanguage)
	if err != nil {
		return "", err
	}
	sourceName := languages.Name(in.SourceLanguage)

	var b strings.Builder
	fmt.Fprintf(&b, "You rewrite %s narrative text into a Level %d/%d %s-%s hybrid for gradual language immersion.\n",
		sourceName, in.Level, models.TransformLevels, sourceName, target.Name)
	b.WriteString("The result must stay readable and faithful to the plot.\n\n")
	fmt.Fprintf(&b, "SOURCE LANGUAGE: %s\nTARGET LANGUAGE: %s\n\n", sourceName, target.Name)

	b.WriteString("LEVEL RUBRIC:\n")
	b.WriteString(levelRubrics[in.Level])
	b.WriteString("\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("1. Keep the paragraph structure: one output paragraph per input paragraph, in order.\n")
	b.WriteString("2. Keep meaning and events. Do not add, drop or reorder anything.\n")
	b.WriteString("3. Keep proper nouns and established translations consistent.\n")
	b.WriteString("4. Dialogue is transformed at the same level as narration.\n")
	b.WriteString("5. Use only real, attested words. Never coin forms.\n\n")

	if target.Transliterated() {
		fmt.Fprintf(&b, "SCRIPT:\n- Write every %s word in Latin transliteration at every level.\n", target.Name)
		fmt.Fprintf(&b, "- Never put native %s script in paragraph text; it belongs in new_terms.native_script.\n", target.Name)
		if std, ok := romanizationStandards[in.TargetLanguage]; ok && in.Level >= 1 {
			fmt.Fprintf(&b, "- ROMANIZATION STANDARD: %s\n", std)
		}
		b.WriteString("\nINLINE ANNOTATIONS:\n")
		fmt.Fprintf(&b, "- Wrap EVERY %s token, content and function words alike, as {{display|base|native}}.\n", target.Name)
		b.WriteString("- display: transliteration as used in the sentence; base: transliterated dictionary form; native: the in-context form in native script.\n")
		fmt.Fprintf(&b, "- Do not wrap %s words or proper nouns.\n", sourceName)
		b.WriteString("- native_script is required for every new term (dictionary form).\n\n")
	} else {
		b.WriteString("INLINE ANNOTATIONS:\n")
		fmt.Fprintf(&b, "- Wrap NEW %s content words (nouns, verbs, adjectives, adverbs) as {{display|base}} on first occurrence.\n", target.Name)
		b.WriteString("- display: the word as used in the sentence; base: the dictionary form.\n")
		fmt.Fprintf(&b, "- Do not wrap function words, %s words or proper nouns.\n", sourceName)
		b.WriteString("- native_script is an empty string.\n\n")
	}

	b.WriteString("OUTPUT FORMAT:\n")
	b.WriteString("Return only a JSON object, no prose and no code fences:\n")
	b.WriteString(`{"paragraphs": [{"text": "...", "footnote_refs": ["base form", ...]}], ` +
		`"new_terms": [{"term": "...", "translation": "...", "explanation": "...", "category": "...", ` +
		`"grammar_note": "...", "pronunciation": "...", "native_script": "..."}]}`)
	b.WriteString("\n- footnote_refs lists the base forms of terms introduced in that paragraph.\n")
	b.WriteString("- Every footnote_ref needs a matching new_terms entry with all fields filled.\n")
	b.WriteString("- category is one of: article, preposition, connector, verb, noun, adjective, adverb, pronoun, other.\n")
	b.WriteString("- pronunciation is IPA with stress marks.\n")

	known := strings.TrimSpace(in.KnownTerms)
	if known == "" {
		known = EmptyVocabularyListing
	}
	b.WriteString("\n")
	b.WriteString(KnownTermsHeader)
	b.WriteString("\n")
	b.WriteString(known)
	b.WriteString("\n")

	if tail := strings.TrimSpace(in.ContinuityTail); tail != "" {
		b.WriteString("\n")
		b.WriteString(ContinuityHeader)
		fmt.Fprintf(&b, "\n\"\"\"%s\"\"\"\n", tail)
	}

	if hint := strings.TrimSpace(in.QualityHint); hint != "" {
		b.WriteString("\n")
		b.WriteString(QualityHintHeader)
		b.WriteString("\n")
		b.WriteString(hint)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// UserMessage 构建包含源文本的用户消息
func UserMessage(level int, text string) string {
	return fmt.Sprintf("Transform the following text to Level %d/%d. Respond with the JSON object only.\n\nSOURCE TEXT:\n\"\"\"\n%s\n\"\"\"",
		level, models.TransformLevels, text)
}
