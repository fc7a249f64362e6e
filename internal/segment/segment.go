// Package segment splits Markdown text into typed semantic units: paragraphs,
// fenced code blocks, tables, lists, headings, and horizontal rules. Units
// keep their source order and, rejoined, reconstruct all non-blank content.
//
// A unit is indivisible by default; the chunk packer relies on that to keep
// code blocks, tables, and list items whole across translation requests.
package segment

import (
	"regexp"
	"strings"
)

// UnitType classifies a semantic unit.
type UnitType string

const (
	Paragraph UnitType = "paragraph"
	CodeBlock UnitType = "code_block"
	Table     UnitType = "table"
	List      UnitType = "list"
	Header    UnitType = "header"
	Rule      UnitType = "hr"
)

// Unit is one classified span of document text.
type Unit struct {
	Type    UnitType
	Content string
}

var (
	fenceRe      = regexp.MustCompile("^\\s*(```|~~~)")
	headerRe     = regexp.MustCompile(`^#{1,6}\s+\S`)
	ruleRe       = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	listMarkerRe = regexp.MustCompile(`^(\s*)(?:[-*+]\s+(?:\[[ xX]\]\s*)?|\d{1,3}[.)]\s+|[a-zA-Z][.)]\s+)\S`)
)

type scanState int

const (
	statePlain scanState = iota
	stateCode
	stateTable
	stateList
)

// Segment splits text into semantic units. The scanner is a single pass over
// lines with four mutually exclusive open states; fenced code always wins
// over table and list detection, and a fence opened inside a list is absorbed
// into the list unit.
func Segment(text string) []Unit {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")

	var (
		units      []Unit
		buf        []string // lines of the current open code/table/list unit
		para       []string // lines of the current paragraph
		state      = statePlain
		fence      string // marker that opened the current code block
		listFence  bool   // a fence is open inside the current list unit
		listIndent int    // indent of the current list's outermost marker
	)

	flushPara := func() {
		if len(para) > 0 {
			units = append(units, Unit{Type: Paragraph, Content: strings.Join(para, "\n")})
			para = nil
		}
	}
	flushOpen := func(t UnitType) {
		if len(buf) > 0 {
			content := strings.TrimRight(strings.Join(buf, "\n"), "\n")
			units = append(units, Unit{Type: t, Content: content})
			buf = nil
		}
		state = statePlain
	}

	// classifyPlain handles a line with no unit open. It may open a new state.
	var classifyPlain func(line string)
	classifyPlain = func(line string) {
		switch {
		case fenceRe.MatchString(line):
			flushPara()
			state = stateCode
			fence = fenceMarker(line)
			buf = append(buf, line)
		case isTableRow(line):
			flushPara()
			state = stateTable
			buf = append(buf, line)
		case listMarkerRe.MatchString(line):
			flushPara()
			state = stateList
			listIndent = indentWidth(line)
			listFence = false
			buf = append(buf, line)
		case headerRe.MatchString(line):
			flushPara()
			units = append(units, Unit{Type: Header, Content: line})
		case ruleRe.MatchString(line):
			flushPara()
			units = append(units, Unit{Type: Rule, Content: line})
		case strings.TrimSpace(line) == "":
			flushPara()
		default:
			para = append(para, line)
		}
	}

	for _, line := range lines {
		switch state {
		case stateCode:
			buf = append(buf, line)
			if fenceRe.MatchString(line) && fenceMarker(line) == fence {
				flushOpen(CodeBlock)
			}

		case stateTable:
			if isTableRow(line) {
				buf = append(buf, line)
				continue
			}
			flushOpen(Table)
			classifyPlain(line)

		case stateList:
			if listFence {
				// Everything is list content until the embedded fence closes.
				buf = append(buf, line)
				if fenceRe.MatchString(line) {
					listFence = false
				}
				continue
			}
			if fenceRe.MatchString(line) {
				listFence = true
				buf = append(buf, line)
				continue
			}
			if listMarkerRe.MatchString(line) {
				if indentWidth(line) < listIndent {
					// Indent decrease signals a new outer list.
					flushOpen(List)
					state = stateList
					listIndent = indentWidth(line)
				}
				buf = append(buf, line)
				continue
			}
			if strings.TrimSpace(line) == "" || indentWidth(line) > 0 {
				// Blank lines and indented lines continue the list item.
				buf = append(buf, line)
				continue
			}
			flushOpen(List)
			classifyPlain(line)

		default:
			classifyPlain(line)
		}
	}

	switch state {
	case stateCode:
		flushOpen(CodeBlock)
	case stateTable:
		flushOpen(Table)
	case stateList:
		flushOpen(List)
	}
	flushPara()

	return units
}

func fenceMarker(line string) string {
	m := fenceRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func isTableRow(line string) bool {
	return strings.Contains(line, "|")
}

// indentWidth measures leading whitespace, counting a tab as 4 columns.
func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}
