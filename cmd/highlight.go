package cmd

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// colorizeDiff renders text through the diff lexer with terminal escape
// codes. On any failure the plain text comes back unchanged so --color
// never loses output.
func colorizeDiff(text string) string {
	if text == "" {
		return text
	}
	lexer := lexers.Get("diff")
	if lexer == nil {
		return text
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get("github-dark")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return text
	}
	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return text
	}
	return b.String()
}
