package internal

import "time"

// TranslationRequest is the persisted record of one document translation.
type TranslationRequest struct {
	ID         string    `json:"id"`
	SourceText string    `json:"source_text"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Timestamp  time.Time `json:"timestamp"`
}
