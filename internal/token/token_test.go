package token_test

import (
	"testing"

	"github.com/valpere/mdtran/internal/token"
)

func TestEstimate_Empty(t *testing.T) {
	est := token.NewEstimator()
	if got := est.Estimate(""); got != 0 {
		t.Errorf("expected 0 for empty input, got %d", got)
	}
}

func TestEstimate_MixedCJKAndEnglish(t *testing.T) {
	est := token.NewEstimator()
	// 5 CJK runes + 1 English word (5 letters) + 1 space:
	// ceil(5*1.0 + 1*0.25 + 1*0.5) = 6
	if got := est.Estimate("こんにちは world"); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestEstimate_EnglishWords(t *testing.T) {
	est := token.NewEstimator()
	// 3 words, 2 spaces: ceil(3*0.25 + 2*0.5) = ceil(1.75) = 2
	if got := est.Estimate("one two three"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestEstimate_OtherOnly(t *testing.T) {
	est := token.NewEstimator()
	// 4 punctuation runes: ceil(4*0.5) = 2
	if got := est.Estimate("!@#$"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestEstimateFor_CJKToEnglish(t *testing.T) {
	est := token.NewEstimator()
	text := "これは日本語のテキストです"

	plain := est.Estimate(text)
	scaled := est.EstimateFor(text, "en")
	if scaled >= plain {
		t.Errorf("CJK→en should shrink the estimate: plain=%d scaled=%d", plain, scaled)
	}
}

func TestEstimateFor_EnglishToCJK(t *testing.T) {
	est := token.NewEstimator()
	text := "This is a long English sentence that should grow when translated."

	plain := est.Estimate(text)
	scaled := est.EstimateFor(text, "ja")
	if scaled <= plain {
		t.Errorf("en→ja should grow the estimate: plain=%d scaled=%d", plain, scaled)
	}
}

func TestEstimateFor_SameDirection(t *testing.T) {
	est := token.NewEstimator()
	text := "Plain English text stays unscaled."

	if est.EstimateFor(text, "fr") != est.Estimate(text) {
		t.Error("Latin→Latin should not scale the estimate")
	}
}

func TestEstimateFor_Deterministic(t *testing.T) {
	est := token.NewEstimator()
	text := "同じ入力 always gives the same answer. 123!"
	first := est.EstimateFor(text, "en")
	for i := 0; i < 10; i++ {
		if got := est.EstimateFor(text, "en"); got != first {
			t.Fatalf("estimate not deterministic: %d vs %d", got, first)
		}
	}
}

func TestIsCJKText(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"これは日本語です", true},
		{"Plain English text", false},
		{"", false},
		// Below the 30% ratio: a few CJK runes inside English prose.
		{"The word 日本 appears once in this otherwise English sentence", false},
	}
	for _, tt := range tests {
		if got := token.IsCJKText(tt.text); got != tt.want {
			t.Errorf("IsCJKText(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsCJKLanguage(t *testing.T) {
	for _, lang := range []string{"ja", "zh", "ko", "zh-CN", "Japanese"} {
		if !token.IsCJKLanguage(lang) {
			t.Errorf("expected %q to be CJK", lang)
		}
	}
	for _, lang := range []string{"en", "uk", "fr", ""} {
		if token.IsCJKLanguage(lang) {
			t.Errorf("expected %q not to be CJK", lang)
		}
	}
}

func TestNewEstimatorWith_CustomWeights(t *testing.T) {
	est := token.NewEstimatorWith(token.Weights{CJK: 2.0, Word: 1.0, Other: 1.0}, token.Ratios{})
	// 2 CJK runes at weight 2: ceil(4) = 4
	if got := est.Estimate("日本"); got != 4 {
		t.Errorf("expected 4 with doubled CJK weight, got %d", got)
	}
}
