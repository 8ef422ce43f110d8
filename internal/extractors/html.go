package extractors

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor renders HTML documents as plain text.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return HTMLToText(decodeText(data))
}

func (e *HTMLExtractor) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (e *HTMLExtractor) Priority() int {
	return 50
}

// skipped elements never contribute text
var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// blockElements are separated from their neighbours by a line break
var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "div": true, "dl": true, "dt": true, "dd": true,
	"fieldset": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// HTMLToText parses markup and returns its visible text with block elements on
// separate lines. Also used to render HTML-only email bodies.
func HTMLToText(markup string) (string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") && !strings.HasSuffix(sb.String(), " ") {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "br" {
				sb.WriteByte('\n')
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	return cleanText(strings.ReplaceAll(sb.String(), "\n ", "\n")), nil
}
