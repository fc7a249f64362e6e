// Package normalize cleans and repairs raw LLM translation output into
// well-formed Markdown. The pipeline order is fixed: prompt-leak stripping,
// unwanted prefix stripping, fence repair, blank-line collapsing, list
// re-indentation, and finally placeholder restoration. Restoring last keeps
// placeholders from being mistaken for code during fence repair.
package normalize

import (
	"regexp"
	"strings"

	"github.com/valpere/mdtran/internal/protect"
)

// DefaultUnwantedPrefixes are literal prefixes models prepend despite being
// told not to. Matched case-insensitively at the very start of the response.
var DefaultUnwantedPrefixes = []string{
	"Translation:",
	"Translated text:",
	"Here is the translation:",
	"Here's the translation:",
	"译文：",
	"翻訳：",
	"翻译：",
}

// languageLabels are language names a model may use to label its output.
var languageLabels = []string{
	"English", "Japanese", "Chinese", "Korean", "French", "German",
	"Spanish", "Ukrainian", "Russian", "Portuguese", "Italian",
}

// leakAnchors recognise echoed instruction text at the start of a response.
// Each is anchored at the beginning; stripping repeats until none match, so
// the content after the last recognised boundary survives.
var leakAnchors = []*regexp.Regexp{
	// System-role preambles, English and CJK variants.
	regexp.MustCompile(`\A(?i)you are (?:a|an) [^\n]*translat[^\n]*\n+`),
	regexp.MustCompile(`\Aあなたは[^\n]*(?:翻訳|翻訳者)[^\n]*\n+`),
	regexp.MustCompile(`\A你是[^\n]*翻译[^\n]*\n+`),
	// Explicit "translate ... into <language>" instruction lines.
	regexp.MustCompile(`\A(?i)(?:please )?translate[^\n]*(?:into|to) [^\n]*\n+`),
	regexp.MustCompile(`\A[^\n]*を[^\n]*に翻訳[^\n]*\n+`),
}

// numberedRulesRe matches a leading numbered list followed by blank lines.
// A translated document may legitimately start with one, so it is only
// stripped when the lines read like echoed instructions (see
// instructionWordRe), never on shape alone.
var numberedRulesRe = regexp.MustCompile(`\A(?:\d+[.)][^\n]*\n)+\n+`)

var instructionWordRe = regexp.MustCompile(`(?i)translat|do not|don't|preserve|respond|output only|formatting|placeholder|翻訳|翻译`)

// Config adjusts the normalizer. Zero values fall back to defaults.
type Config struct {
	UnwantedPrefixes []string
	CodeThreshold    float64
}

// Normalizer repairs raw translation responses. Construct once and reuse;
// it is stateless across calls.
type Normalizer struct {
	prefixes   []string
	classifier *Classifier
	protector  *protect.Protector
}

// New returns a Normalizer for cfg.
func New(cfg Config) *Normalizer {
	prefixes := cfg.UnwantedPrefixes
	if prefixes == nil {
		prefixes = DefaultUnwantedPrefixes
	}
	cls := NewClassifier()
	if cfg.CodeThreshold > 0 {
		cls.Threshold = cfg.CodeThreshold
	}
	return &Normalizer{
		prefixes:   prefixes,
		classifier: cls,
		protector:  protect.NewProtector(),
	}
}

// Clean runs the textual repair pipeline on a raw translation response.
func (n *Normalizer) Clean(raw string) string {
	text := stripPromptLeak(raw)
	text = n.stripPrefixes(text)
	text = n.repairFences(text)
	text = collapseBlankLines(text)
	text = normalizeListIndent(text)
	return strings.TrimSpace(text)
}

// CleanWithPatterns runs the full pipeline and then restores protected
// patterns as the final step. It returns the cleaned text and the number of
// placeholders successfully restored.
func (n *Normalizer) CleanWithPatterns(raw string, patterns []protect.Pattern) (string, int) {
	text := n.Clean(raw)
	if len(patterns) == 0 {
		return text, 0
	}
	return n.protector.Restore(text, patterns)
}

// Classifier returns the classifier the normalizer scores lines with.
func (n *Normalizer) Classifier() *Classifier {
	return n.classifier
}

// --- Step 1: prompt-leak stripping ---

func stripPromptLeak(text string) string {
	for {
		stripped := false
		for _, re := range leakAnchors {
			if loc := re.FindStringIndex(text); loc != nil {
				text = text[loc[1]:]
				stripped = true
			}
		}
		if loc := numberedRulesRe.FindStringIndex(text); loc != nil && instructionWordRe.MatchString(text[:loc[1]]) {
			text = text[loc[1]:]
			stripped = true
		}
		if !stripped {
			return text
		}
	}
}

// --- Step 2: prefix/label stripping ---

func (n *Normalizer) stripPrefixes(text string) string {
	text = strings.TrimLeft(text, " \t\n")
	for _, prefix := range n.prefixes {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			return strings.TrimLeft(text[len(prefix):], " \t\n")
		}
	}
	for _, label := range languageLabels {
		for _, sep := range []string{":", "："} {
			full := label + sep
			if len(text) >= len(full) && strings.EqualFold(text[:len(full)], full) {
				return strings.TrimLeft(text[len(full):], " \t\n")
			}
		}
	}
	return text
}

// --- Step 3: fence repair ---

var listLineRe = regexp.MustCompile(`^\s*(?:[-*+]|\d{1,3}[.)]|[a-zA-Z][.)])\s+\S`)

func isFenceLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// repairFences walks the response line by line tracking fence state. Runs of
// code-looking lines outside any fence get wrapped in a synthesized fence
// pair; a fence left open at end of input is closed.
func (n *Normalizer) repairFences(text string) string {
	lines := strings.Split(text, "\n")

	var out []string
	var codeRun []string
	inFence := false

	flushRun := func() {
		if len(codeRun) == 0 {
			return
		}
		out = append(out, "```")
		out = append(out, codeRun...)
		out = append(out, "```")
		codeRun = nil
	}

	for _, line := range lines {
		if isFenceLine(line) {
			flushRun()
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		if n.looksLikeCode(line) {
			codeRun = append(codeRun, line)
			continue
		}
		flushRun()
		out = append(out, line)
	}
	flushRun()

	if inFence {
		out = append(out, "```")
	}

	return strings.Join(out, "\n")
}

func (n *Normalizer) looksLikeCode(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if listLineRe.MatchString(line) {
		return false
	}
	return n.classifier.IsCode(line)
}

// --- Step 4: blank-line collapsing (outside fences only) ---

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")

	var out []string
	inFence := false
	blanks := 0

	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
		}
		if !inFence && strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// --- Step 5: list indentation normalization ---

var listIndentRe = regexp.MustCompile(`^(\s*)((?:[-*+]|\d{1,3}[.)]|[a-zA-Z][.)])\s+.*)$`)

// normalizeListIndent re-indents list lines to 2 spaces per nesting level.
// Depth is inferred from the distinct indent widths present: the narrowest
// becomes level 0, the next level 1, and so on.
func normalizeListIndent(text string) string {
	lines := strings.Split(text, "\n")

	// First pass: collect distinct indent widths of list lines outside fences.
	widthSet := map[int]bool{}
	inFence := false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := listIndentRe.FindStringSubmatch(line); m != nil {
			widthSet[displayWidth(m[1])] = true
		}
	}
	if len(widthSet) == 0 {
		return text
	}

	widths := make([]int, 0, len(widthSet))
	for w := range widthSet {
		widths = append(widths, w)
	}
	// Insertion sort; the set of distinct widths is tiny.
	for i := 1; i < len(widths); i++ {
		for j := i; j > 0 && widths[j] < widths[j-1]; j-- {
			widths[j], widths[j-1] = widths[j-1], widths[j]
		}
	}
	level := map[int]int{}
	for i, w := range widths {
		level[w] = i
	}

	// Second pass: rewrite indents.
	inFence = false
	for i, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := listIndentRe.FindStringSubmatch(line); m != nil {
			depth := level[displayWidth(m[1])]
			lines[i] = strings.Repeat("  ", depth) + m[2]
		}
	}

	return strings.Join(lines, "\n")
}

// displayWidth measures indentation, counting a tab as 4 columns.
func displayWidth(indent string) int {
	w := 0
	for _, r := range indent {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}
