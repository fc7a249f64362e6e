// Package markdown renders translated Markdown to standalone HTML for the
// optional export path of the translate command.
package markdown

import (
	"fmt"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ToHTML renders a Markdown document body to an HTML fragment.
func ToHTML(md []byte) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

// ToHTMLDocument wraps the rendered fragment in a minimal HTML page, so the
// export opens directly in a browser.
func ToHTMLDocument(title string, md []byte) string {
	body := ToHTML(md)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, title, body)
}
