package normalize

import (
	"regexp"
	"strings"
)

// DefaultCodeThreshold is the score at or above which text is treated as code.
const DefaultCodeThreshold = 0.4

// symbolRule contributes weighted evidence that text is code. Rules are kept
// as a declarative table so each can be unit-tested independently.
type symbolRule struct {
	name   string
	re     *regexp.Regexp
	weight float64
}

// Per-category caps stop any single signal from saturating the score.
const (
	keywordWeight = 0.15
	keywordCap    = 0.45
	symbolCap     = 0.6

	connectiveWeight = 0.1
	connectiveCap    = 0.3
	sentenceWeight   = 0.15
)

// languageKeywords lists distinctive keywords per language family. A keyword
// must match on a word boundary to count.
var languageKeywords = map[string][]string{
	"go":     {"func", "package", "import", "defer", "chan", "struct", "interface"},
	"python": {"def", "lambda", "elif", "import", "self", "yield"},
	"js":     {"function", "const", "let", "var", "await", "async", "=>"},
	"c":      {"void", "int", "char", "sizeof", "typedef", "include"},
	"shell":  {"echo", "sudo", "grep", "awk", "sed", "export"},
	"sql":    {"SELECT", "INSERT", "UPDATE", "DELETE", "WHERE", "JOIN"},
}

var symbolRules = []symbolRule{
	{"assignment", regexp.MustCompile(`\w+\s*(?::=|=)\s*\S`), 0.2},
	{"call", regexp.MustCompile(`\w+\([^)]*\)`), 0.2},
	{"operator", regexp.MustCompile(`==|!=|&&|\|\||->|=>|<-|\+=|-=`), 0.2},
	{"string-literal", regexp.MustCompile(`"[^"]*"|'[^']*'`), 0.1},
	{"tag", regexp.MustCompile(`</?\w+[^>]*>`), 0.2},
	{"bracket-block", regexp.MustCompile(`[{}\[\];]`), 0.1},
}

// connectiveWords is natural-language evidence: prose leans on these,
// code rarely does.
var connectiveWords = []string{
	"the", "and", "that", "this", "with", "from", "which", "because",
	"however", "therefore", "although",
}

// sentencePunctRe matches prose-style sentence flow: a terminator followed by
// a space and a capital letter.
var sentencePunctRe = regexp.MustCompile(`[.!?]\s+[A-ZА-Я]`)

// Classifier scores how code-like a piece of text is, on [0, 1]. It backs the
// normalizer's fence repair and is reused by Markdown post-processing of
// converted documents.
type Classifier struct {
	Threshold float64
}

// NewClassifier returns a Classifier with the default threshold.
func NewClassifier() *Classifier {
	return &Classifier{Threshold: DefaultCodeThreshold}
}

// Score returns code evidence minus natural-language evidence, clamped
// to [0, 1].
func (c *Classifier) Score(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	code := c.keywordEvidence(trimmed) + c.symbolEvidence(trimmed)
	natural := c.naturalEvidence(trimmed)

	score := code - natural
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// IsCode reports whether text scores at or above the classifier threshold.
func (c *Classifier) IsCode(text string) bool {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultCodeThreshold
	}
	return c.Score(text) >= threshold
}

func (c *Classifier) keywordEvidence(text string) float64 {
	evidence := 0.0
	lower := strings.ToLower(text)
	for _, keywords := range languageKeywords {
		for _, kw := range keywords {
			if kw == "=>" {
				if strings.Contains(text, kw) {
					evidence += keywordWeight
				}
				continue
			}
			if containsWord(lower, strings.ToLower(kw)) {
				evidence += keywordWeight
			}
		}
	}
	if evidence > keywordCap {
		evidence = keywordCap
	}
	return evidence
}

func (c *Classifier) symbolEvidence(text string) float64 {
	evidence := 0.0
	for _, rule := range symbolRules {
		if rule.re.MatchString(text) {
			evidence += rule.weight
		}
	}
	if evidence > symbolCap {
		evidence = symbolCap
	}
	return evidence
}

func (c *Classifier) naturalEvidence(text string) float64 {
	evidence := 0.0
	lower := strings.ToLower(text)
	conn := 0.0
	for _, w := range connectiveWords {
		if containsWord(lower, w) {
			conn += connectiveWeight
		}
	}
	if conn > connectiveCap {
		conn = connectiveCap
	}
	evidence += conn

	if sentencePunctRe.MatchString(text) {
		evidence += sentenceWeight
	}
	return evidence
}

// containsWord reports whether word occurs in text bounded by non-letters.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
