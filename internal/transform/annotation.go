package transform

import (
	"regexp"
	"strings"
)

// annotationPattern 行内注释 {{display|base}} 或 {{display|base|native}}
// 同时接受 {{a|}b}、{{a|b|}c}} 等常见畸形写法
var annotationPattern = regexp.MustCompile(`\{\{([^|]+)\|\}?([^|}]+)(?:\|\}?([^}]*))?\}\}?`)

// NormalizeAnnotations 将行内注释规整为标准形式
// 缺少显示形式或基本形式的注释退化为纯文本，空的原生文字部分被去掉
func NormalizeAnnotations(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	matches := annotationPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		last = m[1]

		display := strings.TrimSpace(text[m[2]:m[3]])
		base := CleanTermToken(text[m[4]:m[5]])
		native := ""
		if m[6] >= 0 {
			native = CleanTermToken(text[m[6]:m[7]])
		}

		switch {
		case display == "" || base == "":
			if display != "" {
				sb.WriteString(display)
			} else {
				sb.WriteString(base)
			}
		case native != "":
			sb.WriteString("{{" + display + "|" + base + "|" + native + "}}")
		default:
			sb.WriteString("{{" + display + "|" + base + "}}")
		}
	}
	sb.WriteString(text[last:])
	return sb.String()
}
