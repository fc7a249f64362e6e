package segment

import (
	"strings"
	"testing"
)

func TestSegment_Empty(t *testing.T) {
	if got := Segment(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestSegment_MixedDocument(t *testing.T) {
	text := "# Title\n\nA paragraph of prose.\n\n```go\nfmt.Println(\"hi\")\n```\n"

	units := Segment(text)
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d: %v", len(units), units)
	}
	if units[0].Type != Header || units[0].Content != "# Title" {
		t.Errorf("unit 0: got %v %q", units[0].Type, units[0].Content)
	}
	if units[1].Type != Paragraph || units[1].Content != "A paragraph of prose." {
		t.Errorf("unit 1: got %v %q", units[1].Type, units[1].Content)
	}
	if units[2].Type != CodeBlock {
		t.Errorf("unit 2: got %v, want code block", units[2].Type)
	}
	if !strings.Contains(units[2].Content, "fmt.Println") {
		t.Errorf("code block lost its body: %q", units[2].Content)
	}
}

func TestSegment_FenceAbsorbsEverything(t *testing.T) {
	// Table- and list-looking lines inside a fence stay code.
	text := "```\n| a | b |\n- item\n# not a header\n```"

	units := Segment(text)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d: %v", len(units), units)
	}
	if units[0].Type != CodeBlock {
		t.Errorf("expected code block, got %v", units[0].Type)
	}
	if !strings.Contains(units[0].Content, "| a | b |") {
		t.Errorf("fence dropped a line: %q", units[0].Content)
	}
}

func TestSegment_UnclosedFenceRunsToEnd(t *testing.T) {
	text := "before\n\n```\ncode line\nmore code"

	units := Segment(text)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %v", len(units), units)
	}
	if units[1].Type != CodeBlock {
		t.Errorf("expected trailing code block, got %v", units[1].Type)
	}
	if !strings.HasSuffix(units[1].Content, "more code") {
		t.Errorf("unclosed fence should absorb to EOF: %q", units[1].Content)
	}
}

func TestSegment_TildeFenceNotClosedByBackticks(t *testing.T) {
	text := "~~~\ncode\n```\nstill code\n~~~"

	units := Segment(text)
	if len(units) != 1 || units[0].Type != CodeBlock {
		t.Fatalf("expected a single code block, got %v", units)
	}
	if !strings.Contains(units[0].Content, "still code") {
		t.Errorf("backtick line should not close a tilde fence: %q", units[0].Content)
	}
}

func TestSegment_Table(t *testing.T) {
	text := "| Name | Age |\n|------|-----|\n| Ann  | 30  |\n\nafter"

	units := Segment(text)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %v", len(units), units)
	}
	if units[0].Type != Table {
		t.Errorf("expected table, got %v", units[0].Type)
	}
	if got := strings.Count(units[0].Content, "\n"); got != 2 {
		t.Errorf("table should hold 3 rows, got %d newlines: %q", got, units[0].Content)
	}
	if units[1].Type != Paragraph {
		t.Errorf("expected trailing paragraph, got %v", units[1].Type)
	}
}

func TestSegment_ListKinds(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"dash", "- one\n- two"},
		{"star", "* one\n* two"},
		{"numbered", "1. one\n2. two"},
		{"paren", "1) one\n2) two"},
		{"letter", "a. one\nb. two"},
		{"task", "- [ ] todo\n- [x] done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := Segment(tt.text)
			if len(units) != 1 || units[0].Type != List {
				t.Errorf("expected one list unit, got %v", units)
			}
		})
	}
}

func TestSegment_NestedListStaysOneUnit(t *testing.T) {
	text := "- outer\n  - inner\n    - deepest\n- outer again"

	units := Segment(text)
	if len(units) != 1 || units[0].Type != List {
		t.Fatalf("expected one list unit, got %v", units)
	}
}

func TestSegment_ListContinuationLines(t *testing.T) {
	// An indented wrapped line and a blank line both continue the item.
	text := "- first item\n  wrapped continuation\n\n- second item"

	units := Segment(text)
	if len(units) != 1 || units[0].Type != List {
		t.Fatalf("expected one list unit, got %v", units)
	}
	if !strings.Contains(units[0].Content, "wrapped continuation") {
		t.Errorf("continuation line lost: %q", units[0].Content)
	}
}

func TestSegment_FenceInsideListAbsorbed(t *testing.T) {
	text := "- step one\n  ```\n  code in item\n\n  | not | a | table |\n  ```\n- step two"

	units := Segment(text)
	if len(units) != 1 || units[0].Type != List {
		t.Fatalf("expected one list unit, got %v", units)
	}
	if !strings.Contains(units[0].Content, "code in item") {
		t.Errorf("embedded fence content lost: %q", units[0].Content)
	}
	if !strings.Contains(units[0].Content, "- step two") {
		t.Errorf("list should continue after embedded fence closes: %q", units[0].Content)
	}
}

func TestSegment_HorizontalRule(t *testing.T) {
	for _, line := range []string{"---", "***", "___", "-----"} {
		units := Segment("above\n\n" + line + "\n\nbelow")
		if len(units) != 3 || units[1].Type != Rule {
			t.Errorf("%q: expected paragraph/hr/paragraph, got %v", line, units)
		}
	}
}

func TestSegment_RuleVsListAmbiguity(t *testing.T) {
	// "- one" is a list marker; "---" alone is a rule even though both
	// start with a dash.
	units := Segment("---")
	if len(units) != 1 || units[0].Type != Rule {
		t.Errorf("bare --- should be a rule, got %v", units)
	}
}

func TestSegment_MultiLineParagraph(t *testing.T) {
	text := "line one\nline two\nline three\n\nnext para"

	units := Segment(text)
	if len(units) != 2 {
		t.Fatalf("expected 2 paragraphs, got %v", units)
	}
	if units[0].Content != "line one\nline two\nline three" {
		t.Errorf("hard-wrapped lines should stay one paragraph: %q", units[0].Content)
	}
}

func TestSegment_ContentPreserved(t *testing.T) {
	// Every non-blank source line must survive segmentation verbatim.
	text := "# Head\n\npara one\npara two\n\n- a\n- b\n\n| x | y |\n| 1 | 2 |\n\n```\nbody\n```\n\n---\n\ntail"

	units := Segment(text)
	joined := "\n"
	for _, u := range units {
		joined += u.Content + "\n"
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.Contains(joined, "\n"+line+"\n") {
			t.Errorf("line lost during segmentation: %q", line)
		}
	}
}

func TestIndentWidth(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"no indent", 0},
		{"  two", 2},
		{"\ttab", 4},
		{"\t  mixed", 6},
		{"    ", 4},
	}
	for _, tt := range tests {
		if got := indentWidth(tt.line); got != tt.want {
			t.Errorf("indentWidth(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}
