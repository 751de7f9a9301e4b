package languages

import (
	"fmt"
	"sort"
)

// Script 书写系统
type Script string

const (
	ScriptLatin    Script = "latin"
	ScriptCyrillic Script = "cyrillic"
	ScriptCJK      Script = "cjk"
	ScriptHangul   Script = "hangul"
	ScriptHebrew   Script = "hebrew"
	ScriptArabic   Script = "arabic"
)

// Language 语言信息
type Language struct {
	Code   string // 语言代码
	Name   string // 显示名称
	Script Script // 书写系统
	Family string // 与英语的结构距离：source, close, medium, sov, isolating
}

// IsLatin 是否使用拉丁字母书写
func (l Language) IsLatin() bool {
	return l.Script == ScriptLatin
}

// Transliterated 作为目标语言时是否以罗马字转写呈现
func (l Language) Transliterated() bool {
	return !l.IsLatin()
}

var registry = map[string]Language{
	"en": {Code: "en", Name: "English", Script: ScriptLatin, Family: "source"},
	"es": {Code: "es", Name: "Spanish", Script: ScriptLatin, Family: "close"},
	"fr": {Code: "fr", Name: "French", Script: ScriptLatin, Family: "close"},
	"it": {Code: "it", Name: "Italian", Script: ScriptLatin, Family: "close"},
	"pt": {Code: "pt", Name: "Portuguese", Script: ScriptLatin, Family: "close"},
	"de": {Code: "de", Name: "German", Script: ScriptLatin, Family: "close"},
	"pl": {Code: "pl", Name: "Polish", Script: ScriptLatin, Family: "medium"},
	"ru": {Code: "ru", Name: "Russian", Script: ScriptCyrillic, Family: "medium"},
	"ja": {Code: "ja", Name: "Japanese", Script: ScriptCJK, Family: "sov"},
	"zh": {Code: "zh", Name: "Chinese", Script: ScriptCJK, Family: "isolating"},
	"ko": {Code: "ko", Name: "Korean", Script: ScriptHangul, Family: "sov"},
	"he": {Code: "he", Name: "Hebrew", Script: ScriptHebrew, Family: "medium"},
	"ar": {Code: "ar", Name: "Arabic", Script: ScriptArabic, Family: "medium"},
}

// Get 根据代码获取语言
func Get(code string) (Language, error) {
	lang, ok := registry[code]
	if !ok {
		return Language{}, fmt.Errorf("unsupported language: %q", code)
	}
	return lang, nil
}

// Name 返回语言显示名称，未知代码原样返回
func Name(code string) string {
	if lang, ok := registry[code]; ok {
		return lang.Name
	}
	return code
}

// Supported 是否为支持的语言代码
func Supported(code string) bool {
	_, ok := registry[code]
	return ok
}

// Codes 返回所有语言代码（排序后）
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
