// Package token estimates the translation cost of a text. The estimate is a
// heuristic proxy for LLM token usage, not an exact tokenizer count: CJK
// characters translate roughly one-to-one, English words compress well, and
// everything else sits in between.
package token

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Weights assigns a per-class cost to the three disjoint character classes
// counted by the estimator.
type Weights struct {
	CJK   float64 `mapstructure:"cjk" json:"cjk"`     // per CJK rune
	Word  float64 `mapstructure:"word" json:"word"`   // per English word
	Other float64 `mapstructure:"other" json:"other"` // per remaining rune
}

// Ratios scales an estimate by translation direction: translating out of a
// CJK language usually shrinks the text, translating into one usually grows it.
type Ratios struct {
	FromCJK float64 `mapstructure:"from_cjk" json:"from_cjk"`
	ToCJK   float64 `mapstructure:"to_cjk" json:"to_cjk"`
}

// DefaultWeights are tuned for mixed technical prose.
var DefaultWeights = Weights{CJK: 1.0, Word: 0.25, Other: 0.5}

// DefaultRatios are the default direction compression ratios.
var DefaultRatios = Ratios{FromCJK: 0.8, ToCJK: 1.2}

// cjkSourceRatio is the share of CJK runes above which the source text is
// treated as CJK for direction scaling.
const cjkSourceRatio = 0.3

var englishWordRe = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?`)

// Estimator computes translation-cost estimates. It is stateless and safe
// for concurrent use.
type Estimator struct {
	weights Weights
	ratios  Ratios
}

// NewEstimator returns an Estimator with the default weights and ratios.
func NewEstimator() *Estimator {
	return &Estimator{weights: DefaultWeights, ratios: DefaultRatios}
}

// NewEstimatorWith returns an Estimator with explicit weights and ratios.
// Zero-valued fields fall back to the defaults.
func NewEstimatorWith(w Weights, r Ratios) *Estimator {
	if w.CJK == 0 && w.Word == 0 && w.Other == 0 {
		w = DefaultWeights
	}
	if r.FromCJK == 0 {
		r.FromCJK = DefaultRatios.FromCJK
	}
	if r.ToCJK == 0 {
		r.ToCJK = DefaultRatios.ToCJK
	}
	return &Estimator{weights: w, ratios: r}
}

// Estimate returns the estimated translation cost of text without direction
// scaling. Empty input costs 0.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(e.rawCost(text)))
}

// EstimateFor returns the estimated cost of translating text into targetLang.
// The source language is inferred from the CJK rune ratio; the raw cost is
// scaled by the matching direction ratio and re-ceiled. An empty targetLang
// disables scaling.
func (e *Estimator) EstimateFor(text, targetLang string) int {
	if text == "" {
		return 0
	}
	cost := e.rawCost(text)
	if targetLang != "" {
		srcCJK := IsCJKText(text)
		dstCJK := IsCJKLanguage(targetLang)
		switch {
		case srcCJK && !dstCJK:
			cost *= e.ratios.FromCJK
		case !srcCJK && dstCJK:
			cost *= e.ratios.ToCJK
		}
	}
	return int(math.Ceil(cost))
}

func (e *Estimator) rawCost(text string) float64 {
	total := 0
	cjk := 0
	for _, r := range text {
		total++
		if isCJKRune(r) {
			cjk++
		}
	}

	words := englishWordRe.FindAllString(text, -1)
	wordRunes := 0
	for _, w := range words {
		wordRunes += len(w)
	}

	other := total - cjk - wordRunes
	if other < 0 {
		other = 0
	}

	return float64(cjk)*e.weights.CJK +
		float64(len(words))*e.weights.Word +
		float64(other)*e.weights.Other
}

// IsCJKText reports whether text reads as a CJK-source document, i.e. more
// than 30% of its runes are CJK.
func IsCJKText(text string) bool {
	total := 0
	cjk := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJKRune(r) {
			cjk++
		}
	}
	if total == 0 {
		return false
	}
	return float64(cjk)/float64(total) > cjkSourceRatio
}

// IsCJKLanguage reports whether a language code names a CJK target.
func IsCJKLanguage(lang string) bool {
	code := strings.ToLower(lang)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	switch code {
	case "zh", "ja", "ko", "chinese", "japanese", "korean":
		return true
	}
	return false
}

func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
