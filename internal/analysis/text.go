package analysis

import (
	"bytes"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// plainText renders Reddit markdown to plain text for use inside prompts
func plainText(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}

	root := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions)).Parse([]byte(md))

	var buf bytes.Buffer
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Text, blackfriday.Code, blackfriday.CodeBlock:
			if entering {
				buf.Write(node.Literal)
			}
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			if entering {
				buf.WriteByte(' ')
			}
		case blackfriday.Paragraph, blackfriday.Heading, blackfriday.Item:
			if !entering {
				buf.WriteByte(' ')
			}
		}
		return blackfriday.GoToNext
	})

	return strings.Join(strings.Fields(buf.String()), " ")
}
