// Package chunk packs semantic units into translation chunks whose estimated
// cost stays within a caller-supplied token budget.
//
// Packing is greedy and order-preserving. Oversized paragraphs are split by
// sentence and then by line; oversized code blocks, tables, and lists are
// emitted whole: structural integrity beats the budget for those types.
package chunk

import (
	"errors"
	"strings"

	"github.com/valpere/mdtran/internal/segment"
	"github.com/valpere/mdtran/internal/token"
)

// ErrNoUnits is returned when there is nothing to pack.
var ErrNoUnits = errors.New("chunk: no units to pack")

// Packer packs semantic units against a token budget using an injected
// cost estimator.
type Packer struct {
	est *token.Estimator
}

// NewPacker returns a Packer backed by est. A nil est uses the default
// estimator.
func NewPacker(est *token.Estimator) *Packer {
	if est == nil {
		est = token.NewEstimator()
	}
	return &Packer{est: est}
}

// Pack groups units into newline-joined chunks, each estimated at or below
// maxTokens for the given target language. A single unit that alone exceeds
// the budget is sentence-split when it is a paragraph and emitted whole
// otherwise. maxTokens ≤ 0 packs everything into one chunk.
func (p *Packer) Pack(units []segment.Unit, maxTokens int, targetLang string) ([]string, error) {
	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	if maxTokens <= 0 {
		all := make([]string, 0, len(units))
		for _, u := range units {
			all = append(all, u.Content)
		}
		return []string{strings.Join(all, "\n")}, nil
	}

	var chunks []string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, "\n"))
			cur = nil
		}
	}

	for _, u := range units {
		if p.est.EstimateFor(u.Content, targetLang) > maxTokens {
			flush()
			if u.Type == segment.Paragraph {
				chunks = append(chunks, p.splitParagraph(u.Content, maxTokens, targetLang)...)
			} else {
				// code_block / table / list: never split.
				chunks = append(chunks, u.Content)
			}
			continue
		}

		candidate := strings.Join(append(cur[:len(cur):len(cur)], u.Content), "\n")
		if len(cur) > 0 && p.est.EstimateFor(candidate, targetLang) > maxTokens {
			flush()
		}
		cur = append(cur, u.Content)
	}
	flush()

	return chunks, nil
}

// splitParagraph breaks an oversized paragraph at sentence boundaries, and
// any sentence that still exceeds the budget at line boundaries. A single
// line over budget is returned as-is; there is no smaller safe boundary.
func (p *Packer) splitParagraph(text string, maxTokens int, targetLang string) []string {
	var out []string
	for _, piece := range p.packPieces(splitSentences(text), " ", maxTokens, targetLang) {
		if p.est.EstimateFor(piece, targetLang) <= maxTokens {
			out = append(out, piece)
			continue
		}
		out = append(out, p.packPieces(strings.Split(piece, "\n"), "\n", maxTokens, targetLang)...)
	}
	return out
}

// packPieces greedily joins pieces with sep while the estimate stays within
// budget. Pieces that alone exceed the budget become their own chunk.
func (p *Packer) packPieces(pieces []string, sep string, maxTokens int, targetLang string) []string {
	var out []string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, sep))
			cur = nil
		}
	}

	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		candidate := strings.Join(append(cur[:len(cur):len(cur)], piece), sep)
		if len(cur) > 0 && p.est.EstimateFor(candidate, targetLang) > maxTokens {
			flush()
		}
		cur = append(cur, piece)
		if p.est.EstimateFor(strings.Join(cur, sep), targetLang) > maxTokens {
			flush()
		}
	}
	flush()

	return out
}

// splitSentences splits text at sentence-ending punctuation. CJK terminators
// (。！？…) always end a sentence; Latin terminators (.!?) only when followed
// by whitespace or end of text, so decimals and identifiers stay intact.
func splitSentences(text string) []string {
	var sentences []string
	var cur []rune

	runes := []rune(text)
	for i, r := range runes {
		cur = append(cur, r)
		switch r {
		case '。', '！', '？', '…':
			sentences = append(sentences, string(cur))
			cur = nil
		case '.', '!', '?':
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				sentences = append(sentences, string(cur))
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		sentences = append(sentences, string(cur))
	}

	for i, s := range sentences {
		sentences[i] = strings.TrimSpace(s)
	}
	return sentences
}
