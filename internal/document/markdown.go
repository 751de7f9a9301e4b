package document

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownToText 将Markdown转换为以空行分隔段落的纯文本
// 标题、段落和代码块各自成为一个段落，行内格式被去除
func MarkdownToText(src []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(src)

	var blocks []string
	var current strings.Builder
	flush := func() {
		if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
			blocks = append(blocks, text)
		}
		current.Reset()
	}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if !entering {
				flush()
			}
		case *ast.CodeBlock:
			flush()
			current.Write(n.Literal)
			flush()
		case *ast.Text:
			current.Write(n.Literal)
		case *ast.Code:
			current.Write(n.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			current.WriteByte(' ')
		}
		return ast.GoToNext
	})
	flush()

	return strings.Join(blocks, "\n\n")
}
