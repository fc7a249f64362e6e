// Package converter turns input documents into Markdown text for the
// translation pipeline. Markdown passes through untouched; plain text gets a
// light paragraph normalization. Richer formats (EPUB, PDF) are external
// collaborators that plug in through the same interface.
package converter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Converter parses raw document bytes into Markdown text.
type Converter interface {
	Parse(data []byte) (string, error)
}

// ForFile picks a converter by file extension.
func ForFile(path string) (Converter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Passthrough{}, nil
	case ".txt", "":
		return PlainText{}, nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
}

// Passthrough treats the input as Markdown already, normalizing only line
// endings.
type Passthrough struct{}

func (Passthrough) Parse(data []byte) (string, error) {
	return normalizeNewlines(string(data)), nil
}

// PlainText converts plain text to Markdown: line endings are normalized and
// single-newline wrapped lines within a paragraph are preserved as-is, since
// Markdown renders them as soft breaks anyway.
type PlainText struct{}

func (PlainText) Parse(data []byte) (string, error) {
	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
