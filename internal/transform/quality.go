package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zzappa/gradient-reading/internal/languages"
)

// 质量问题类别
const (
	IssueNativeScript   = "native-script characters found in paragraph text"
	IssueDiacriticMarks = "non-standard/diacritic romanization markers detected"
)

// nativeScriptPatterns 以罗马字呈现的目标语言的原生文字范围
var nativeScriptPatterns = map[string]*regexp.Regexp{
	"ru": regexp.MustCompile(`[\x{0400}-\x{04FF}]`),
	"he": regexp.MustCompile(`[\x{0590}-\x{05FF}]`),
	"ar": regexp.MustCompile(`[\x{0600}-\x{06FF}]`),
	"ja": regexp.MustCompile(`[\x{3040}-\x{30FF}\x{3400}-\x{9FFF}]`),
	"zh": regexp.MustCompile(`[\x{3400}-\x{9FFF}]`),
	"ko": regexp.MustCompile(`[\x{1100}-\x{11FF}\x{AC00}-\x{D7AF}]`),
}

// diacriticPatterns 约定的ASCII罗马字规范之外的变音符号
var diacriticPatterns = map[string]*regexp.Regexp{
	"ja": regexp.MustCompile(`[ĀāĒēĪīŌōŪū]`),
	"zh": regexp.MustCompile(`[ĀāÁáǍǎÀàĒēÉéĚěÈèĪīÍíǏǐÌìŌōÓóǑǒÒòŪūÚúǓǔÙùǕǖǗǘǙǚǛǜŃńŇňḾḿ]`),
	"ko": regexp.MustCompile(`[ŎŏŬŭ]`),
	"ru": regexp.MustCompile(`[ŠšČčŽžËë]`),
	"he": regexp.MustCompile(`[ḤḥṢṣṬṭʿʾ]`),
	"ar": regexp.MustCompile(`[ḤḥṢṣṬṭḌḍẒẓʿʾ]`),
}

// QualityGate 检查罗马字输出中的原生文字和变音符号
type QualityGate struct {
	target       string
	sourceLatin  bool
	nativeScript *regexp.Regexp
	diacritics   *regexp.Regexp
}

// NewQualityGate 创建质量检查器，未知的源语言按拉丁文字处理
func NewQualityGate(targetLang, sourceLang string) *QualityGate {
	sourceLatin := true
	if src, err := languages.Get(sourceLang); err == nil {
		sourceLatin = src.IsLatin()
	}
	return &QualityGate{
		target:       targetLang,
		sourceLatin:  sourceLatin,
		nativeScript: nativeScriptPatterns[targetLang],
		diacritics:   diacriticPatterns[targetLang],
	}
}

// Enabled 目标语言是否需要检查
func (g *QualityGate) Enabled() bool {
	return g.nativeScript != nil
}

// Check 返回检测到的问题类别，空切片表示通过
func (g *QualityGate) Check(result *GenerationResult) []string {
	if !g.Enabled() {
		return nil
	}
	text := result.Text()
	if text == "" {
		return nil
	}

	var issues []string
	// 源文本本身是非拉丁文字时，原文残留不算问题
	if g.sourceLatin && g.nativeScript.MatchString(text) {
		issues = append(issues, IssueNativeScript)
	}
	if g.diacritics != nil && g.diacritics.MatchString(text) {
		issues = append(issues, IssueDiacriticMarks)
	}
	return issues
}

// RetryHint 纠正性重试附加的指令
func (g *QualityGate) RetryHint(issues []string) string {
	return fmt.Sprintf(
		"- The previous attempt had romanization problems for '%s': %s.\n"+
			"- Produce the same passage again with the same meaning and the same paragraphs.\n"+
			"- Apply the romanization standard given in this prompt throughout.\n"+
			"- Paragraph text must stay in Latin script.\n",
		g.target, strings.Join(issues, "; "))
}
