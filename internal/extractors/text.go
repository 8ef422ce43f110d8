package extractors

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PlaintextExtractor handles plain text files.
type PlaintextExtractor struct{}

func (e *PlaintextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return cleanText(decodeText(data)), nil
}

func (e *PlaintextExtractor) SupportedTypes() []string {
	return []string{"text/plain", "text/csv"}
}

func (e *PlaintextExtractor) Priority() int {
	return 10
}

// MarkdownExtractor handles Markdown files. Markup is kept; it reads fine to a model.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return cleanText(decodeText(data)), nil
}

func (e *MarkdownExtractor) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (e *MarkdownExtractor) Priority() int {
	return 50
}

// decodeText returns data as UTF-8, reading it as Windows-1252 when it is not valid UTF-8
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

// cleanText normalises line endings and collapses runs of blank lines
func cleanText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
