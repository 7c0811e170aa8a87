package parser

import (
	"context"
	"os"
	"strings"
)

// TextParser reads plain text, markdown, and source/structured text
// files, decoding as UTF-8 and replacing invalid byte sequences rather
// than failing on them.
type TextParser struct{}

func (p *TextParser) Extensions() []string {
	return []string{
		".txt", ".md", ".markdown", ".py", ".js", ".ts", ".tsx", ".jsx",
		".go", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".rb", ".php",
		".json", ".yaml", ".yml", ".toml", ".csv", ".tsv", ".log", ".xml",
		".html", ".css", ".sh", ".sql",
	}
}

func (p *TextParser) Parse(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
