// Package store persists translation state in SQLite: a translation memory
// cache keyed by normalized source text, a terminology glossary, and session
// checkpoints that let an interrupted chunked translation resume from its
// failing chunk.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/mdtran/internal"
	"github.com/valpere/mdtran/internal/protect"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_requests (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		final_text TEXT NOT NULL,
		service_used TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang)
	);

	-- sessions tracks chunked document translations for resume support
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		max_tokens INTEGER NOT NULL,
		status TEXT DEFAULT 'running',
		failed_index INTEGER DEFAULT -1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- session_chunks stores the chunk list and per-chunk results
	CREATE TABLE IF NOT EXISTS session_chunks (
		session_id TEXT NOT NULL,
		chunk_idx INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		translated_text TEXT,
		PRIMARY KEY (session_id, chunk_idx),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	-- session_patterns stores protected-content placeholders for a session
	CREATE TABLE IF NOT EXISTS session_patterns (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		ptype TEXT NOT NULL,
		placeholder TEXT NOT NULL,
		original_text TEXT NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	-- glossary stores user-defined terminology for consistent translation
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_session_chunks ON session_chunks(session_id);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) SaveRequest(ctx context.Context, req internal.TranslationRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_requests (id, source_text, source_lang, target_lang, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.SourceText, req.SourceLang, req.TargetLang, req.Timestamp)
	return err
}

// --- translation memory ---

func (s *Store) GetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error) {
	var finalText string
	var invalidated bool

	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM translation_memory WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		normalizeText(sourceText), sourceLang, targetLang).Scan(&finalText, &invalidated)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		time.Now(), normalizeText(sourceText), sourceLang, targetLang)

	return finalText, true, err
}

func (s *Store) SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_lang, target_lang, final_text, service_used, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, normalizeText(sourceText), sourceLang, targetLang, finalText, serviceUsed, time.Now(), time.Now())
	return err
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	SourceLang  string
	TargetLang  string
	FinalText   string
	ServiceUsed string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, source_lang, target_lang, final_text, service_used, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.SourceLang, &e.TargetLang, &e.FinalText, &e.ServiceUsed, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// --- session checkpoints ---

// SessionCheckpoint is a persisted chunked-translation session.
type SessionCheckpoint struct {
	ID          string
	InputFile   string
	SourceLang  string
	TargetLang  string
	MaxTokens   int
	Status      string
	FailedIndex int
	CreatedAt   time.Time
}

// SessionChunk is one chunk row of a persisted session. TranslatedText is
// empty while the chunk is still pending.
type SessionChunk struct {
	Index          int
	SourceText     string
	TranslatedText string
}

// CreateSession persists a new session checkpoint with its full chunk list
// and the placeholder patterns needed to restore protected content on resume.
func (s *Store) CreateSession(ctx context.Context, id, inputFile, sourceLang, targetLang string, maxTokens int, chunks []string, patterns []protect.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, input_file, source_lang, target_lang, max_tokens) VALUES (?, ?, ?, ?, ?)`,
		id, inputFile, sourceLang, targetLang, maxTokens); err != nil {
		return err
	}
	for i, chunkText := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_chunks (session_id, chunk_idx, source_text) VALUES (?, ?, ?)`,
			id, i, chunkText); err != nil {
			return err
		}
	}
	for i, p := range patterns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_patterns (session_id, position, ptype, placeholder, original_text) VALUES (?, ?, ?, ?, ?)`,
			id, i, string(p.Type), p.Placeholder, p.Original); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSessionPatterns returns a session's protected-content patterns in their
// original protection order.
func (s *Store) GetSessionPatterns(ctx context.Context, sessionID string) ([]protect.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ptype, placeholder, original_text FROM session_patterns WHERE session_id = ? ORDER BY position`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []protect.Pattern
	for rows.Next() {
		var ptype, placeholder, original string
		if err := rows.Scan(&ptype, &placeholder, &original); err != nil {
			return nil, err
		}
		patterns = append(patterns, protect.Pattern{
			Type:        protect.PatternType(ptype),
			Placeholder: placeholder,
			Original:    original,
		})
	}
	return patterns, rows.Err()
}

// SaveChunkResult stores the translated text for one chunk.
func (s *Store) SaveChunkResult(ctx context.Context, sessionID string, idx int, translatedText string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_chunks SET translated_text = ? WHERE session_id = ? AND chunk_idx = ?`,
		translatedText, sessionID, idx)
	return err
}

// MarkSessionFailed records the failing chunk index for later resume.
func (s *Store) MarkSessionFailed(ctx context.Context, sessionID string, failedIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'failed', failed_index = ?, updated_at = ? WHERE id = ?`,
		failedIndex, time.Now(), sessionID)
	return err
}

// CompleteSession marks a session as completed.
func (s *Store) CompleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'completed', failed_index = -1, updated_at = ? WHERE id = ?`,
		time.Now(), sessionID)
	return err
}

// LatestFailedSession returns the most recent failed session for an input
// file and language pair, or nil when there is none to resume.
func (s *Store) LatestFailedSession(ctx context.Context, inputFile, targetLang string) (*SessionCheckpoint, error) {
	var cp SessionCheckpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, source_lang, target_lang, max_tokens, status, failed_index, created_at
		 FROM sessions WHERE input_file = ? AND target_lang = ? AND status = 'failed'
		 ORDER BY updated_at DESC LIMIT 1`,
		inputFile, targetLang).Scan(&cp.ID, &cp.InputFile, &cp.SourceLang, &cp.TargetLang, &cp.MaxTokens, &cp.Status, &cp.FailedIndex, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetSessionChunks returns a session's chunks ordered by index.
func (s *Store) GetSessionChunks(ctx context.Context, sessionID string) ([]SessionChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_idx, source_text, COALESCE(translated_text, '') FROM session_chunks WHERE session_id = ? ORDER BY chunk_idx`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []SessionChunk
	for rows.Next() {
		var c SessionChunk
		if err := rows.Scan(&c.Index, &c.SourceText, &c.TranslatedText); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SessionSummary is one row of the sessions listing, with chunk progress.
type SessionSummary struct {
	ID          string
	InputFile   string
	TargetLang  string
	MaxTokens   int
	Status      string
	FailedIndex int
	CreatedAt   time.Time
	TotalChunks int
	DoneChunks  int
}

// ListSessions returns all checkpointed sessions, newest first, with their
// per-session chunk progress.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.input_file, s.target_lang, s.max_tokens, s.status, s.failed_index, s.created_at,
			COUNT(c.chunk_idx),
			COALESCE(SUM(CASE WHEN c.translated_text IS NOT NULL AND c.translated_text != '' THEN 1 ELSE 0 END), 0)
		FROM sessions s
		LEFT JOIN session_chunks c ON c.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.InputFile, &sum.TargetLang, &sum.MaxTokens, &sum.Status,
			&sum.FailedIndex, &sum.CreatedAt, &sum.TotalChunks, &sum.DoneChunks); err != nil {
			return nil, err
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session checkpoint together with its chunks and
// patterns.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_patterns WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_chunks WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// levenshtein returns the edit distance between two strings (rune-aware).
// Uses a space-optimized two-row DP implementation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				min := prev[j]
				if prev[j-1] < min {
					min = prev[j-1]
				}
				if curr[j-1] < min {
					min = curr[j-1]
				}
				curr[j] = min + 1
			}
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// FuzzyGetCachedTranslation returns a cached translation whose normalised source
// text has at least threshold similarity (0–1) to sourceText. Pass threshold ≤ 0
// to disable (always returns "", false, nil). To avoid O(n²) cost, texts longer
// than 1 000 runes are not fuzzy-matched.
func (s *Store) FuzzyGetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string, threshold float64) (string, bool, error) {
	if threshold <= 0 {
		return "", false, nil
	}

	normalized := normalizeText(sourceText)
	const maxFuzzyRunes = 1000
	if len([]rune(normalized)) > maxFuzzyRunes {
		return "", false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, final_text FROM translation_memory
		 WHERE source_lang = ? AND target_lang = ? AND NOT invalidated`,
		sourceLang, targetLang)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var bestFinal string
	bestScore := 0.0

	for rows.Next() {
		var srcText, finalText string
		if err := rows.Scan(&srcText, &finalText); err != nil {
			return "", false, err
		}

		// Quick length pre-filter: if the length difference alone makes it
		// impossible to reach the threshold, skip the expensive edit distance.
		ls, lr := len([]rune(normalized)), len([]rune(srcText))
		maxL := ls
		if lr > maxL {
			maxL = lr
		}
		diff := ls - lr
		if diff < 0 {
			diff = -diff
		}
		if maxL > 0 && 1.0-float64(diff)/float64(maxL) < threshold {
			continue
		}

		score := stringSimilarity(normalized, srcText)
		if score >= threshold && score > bestScore {
			bestScore = score
			bestFinal = finalText
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	if bestFinal != "" {
		return bestFinal, true, nil
	}
	return "", false, nil
}

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm inserts or replaces a glossary entry.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	id := fmt.Sprintf("gl_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?)`,
		id, sourceLang, targetLang, sourceTerm, targetTerm)
	return err
}

// GetGlossaryTerms returns all active glossary terms for a language pair as a
// source-term → target-term map, ready to embed in a translation prompt.
func (s *Store) GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary WHERE source_lang = ? AND target_lang = ?`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := make(map[string]string)
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		terms[src] = tgt
	}
	return terms, rows.Err()
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []interface{}

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}
