// Package protect replaces translation-unsafe content with inert numbered
// placeholders before text is sent to a translator, and substitutes the
// originals back afterwards. Protected content: fenced code blocks, simple
// numeric tables, and indented number lines.
//
// Restoration is best-effort: a model may drop or rewrite a placeholder, in
// which case that pattern is skipped and the restored count reports how many
// substitutions actually happened.
package protect

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType classifies a protected span.
type PatternType string

const (
	FencedCode     PatternType = "code_block"
	SimpleTable    PatternType = "simple_table"
	IndentedNumber PatternType = "indented_number"
)

// Pattern records one protected span and the placeholder that stands in
// for it.
type Pattern struct {
	Type        PatternType
	Original    string
	Placeholder string
	Meta        map[string]string
}

// tableIDOffset keeps table placeholder numbers clear of code-block numbers.
const tableIDOffset = 100

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")

	// A simple table: a header line, a rule of ≥3 dashes, then one or more
	// rows that start with a number.
	reSimpleTable = regexp.MustCompile(`(?m)^[^\n]+\n-{3,}[ \t]*\n(?:[ \t]*\d[^\n]*\n?)+`)

	// A line of ≥4 leading spaces/tabs holding only a number.
	reIndentNum = regexp.MustCompile(`(?m)^[ \t]{4,}(\d+)[ \t]*$`)
)

// Protector replaces translation-unsafe substrings with placeholders. It is
// stateless; each Protect call numbers placeholders from scratch.
type Protector struct{}

// NewProtector returns a Protector.
func NewProtector() *Protector {
	return &Protector{}
}

// Protect replaces fenced code blocks, simple numeric tables, and indented
// number lines (in that fixed order) with placeholders, returning the
// protected text and the patterns needed to restore it.
func (p *Protector) Protect(text string) (string, []Pattern) {
	var patterns []Pattern

	codeN := 0
	text = reFencedCode.ReplaceAllStringFunc(text, func(match string) string {
		codeN++
		ph := fmt.Sprintf("[CODEBLOCK%d]", codeN)
		patterns = append(patterns, Pattern{
			Type:        FencedCode,
			Original:    match,
			Placeholder: ph,
			Meta:        map[string]string{"index": fmt.Sprintf("%d", codeN)},
		})
		return ph
	})

	tableN := tableIDOffset
	text = reSimpleTable.ReplaceAllStringFunc(text, func(match string) string {
		tableN++
		ph := fmt.Sprintf("[TABLE%d]", tableN)
		patterns = append(patterns, Pattern{
			Type:        SimpleTable,
			Original:    match,
			Placeholder: ph,
			Meta:        map[string]string{"index": fmt.Sprintf("%d", tableN)},
		})
		return ph
	})

	text = reIndentNum.ReplaceAllStringFunc(text, func(match string) string {
		num := reIndentNum.FindStringSubmatch(match)[1]
		// The captured number itself keys the placeholder, keeping protected
		// output diffable against the source.
		ph := fmt.Sprintf("[INDENTNUM%s]", num)
		patterns = append(patterns, Pattern{
			Type:        IndentedNumber,
			Original:    match,
			Placeholder: ph,
			Meta:        map[string]string{"number": num},
		})
		return ph
	})

	return text, patterns
}

// Restore substitutes each pattern's placeholder in text with its original
// content and returns the restored text plus the number of patterns that were
// actually found. Missing placeholders are skipped silently.
func (p *Protector) Restore(text string, patterns []Pattern) (string, int) {
	restored := 0
	for _, pat := range patterns {
		if !strings.Contains(text, pat.Placeholder) {
			continue
		}
		text = strings.ReplaceAll(text, pat.Placeholder, pat.Original)
		restored++
	}
	return text, restored
}
