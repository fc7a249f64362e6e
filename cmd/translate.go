/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/mdtran/internal"
	"github.com/valpere/mdtran/internal/chunk"
	"github.com/valpere/mdtran/internal/converter"
	"github.com/valpere/mdtran/internal/detector"
	"github.com/valpere/mdtran/internal/markdown"
	"github.com/valpere/mdtran/internal/orchestrator"
	"github.com/valpere/mdtran/internal/protect"
	"github.com/valpere/mdtran/internal/store"
	"github.com/valpere/mdtran/internal/translator"
	"github.com/valpere/mdtran/internal/validator"
)

var (
	inputFile   string
	outputFile  string
	sourceLang  string
	targetLang  string
	credentials string
	projectID   string

	serviceName   string
	modelName     string
	ollamaURL     string
	ollamaModel   string
	openrouterKey string
	openaiKey     string

	maxTokens  int
	resumeRun  bool
	htmlExport bool
	noProgress bool

	dbPath         string
	noCache        bool
	fuzzyThreshold float64
	useGlossary    bool
	validateResult bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a Markdown document",
	Long: `Translate a Markdown (or plain text) document while preserving its
structure. Long documents are split into token-bounded chunks along semantic
boundaries and translated strictly in order, one request at a time.

Available services:
  - google      Google Cloud Translation (requires credentials)
  - ollama      Ollama LLM (self-hosted)
  - openrouter  OpenRouter LLM (requires API key)
  - openai      OpenAI chat models (requires API key)

If a run fails partway, already-translated chunks are checkpointed; rerun
with --resume to continue from the failing chunk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		conv, err := converter.ForFile(inputFile)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text, err := conv.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to convert input: %w", err)
		}

		// Ctrl-C cancels cooperatively: the loop stops before the next chunk
		// and the checkpoint keeps what is already translated.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if sourceLang == "auto" {
			det := detector.New()
			if detected, ok := det.DetectISO(text); ok {
				sourceLang = detected
				fmt.Fprintf(os.Stderr, "Detected source language: %s\n", sourceLang)
			}
		}

		var db *store.Store
		if dbPath != "" {
			db, err = store.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
		}

		if db != nil && !noCache && !resumeRun {
			if cached, found, cacheErr := db.GetCachedTranslation(ctx, text, sourceLang, targetLang); cacheErr == nil && found {
				fmt.Fprintf(os.Stderr, "Using cached translation\n")
				return writeOutput(cached)
			}
			if fuzzyThreshold > 0 {
				if cached, found, cacheErr := db.FuzzyGetCachedTranslation(ctx, text, sourceLang, targetLang, fuzzyThreshold); cacheErr == nil && found {
					fmt.Fprintf(os.Stderr, "Using fuzzy-matched cached translation\n")
					return writeOutput(cached)
				}
			}
		}

		var glossaryTerms map[string]string
		if db != nil && useGlossary {
			glossaryTerms, err = db.GetGlossaryTerms(ctx, sourceLang, targetLang)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Glossary lookup failed: %v\n", err)
			}
		}

		service, err := buildService(serviceName, ollamaURL, ollamaModel, openrouterKey, openaiKey, modelName)
		if err != nil {
			return err
		}

		est := estimatorFromConfig()
		orch := orchestrator.New(est, chunk.NewPacker(est), protect.NewProtector(), normalizerFromConfig())

		budget := maxTokens
		if budget <= 0 {
			budget = viper.GetInt("chunk.max_tokens")
		}

		opts := orchestrator.Options{
			Service: service,
			Config: translator.ServiceConfig{
				Credentials: credentials,
				ProjectID:   projectID,
				Model:       modelName,
			},
			MaxTokens:     budget,
			Resume:        resumeRun,
			SourceLang:    sourceLang,
			GlossaryTerms: glossaryTerms,
		}

		if !noProgress {
			bar := progressbar.NewOptions(100,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("translating"),
				progressbar.OptionShowCount(),
			)
			opts.OnProgress = func(percent int, message string) {
				_ = bar.Set(percent)
			}
		}

		if resumeRun {
			if db == nil {
				return fmt.Errorf("--resume requires a database (--db)")
			}
			if err := loadCheckpoint(ctx, db, orch, budget); err != nil {
				return err
			}
		}

		result, runErr := orch.Run(ctx, text, targetLang, opts)
		if !noProgress {
			fmt.Fprintln(os.Stderr)
		}
		if runErr != nil {
			return handleRunFailure(db, orch, runErr)
		}

		if sess := orch.Session(); sess != nil {
			if db != nil {
				_ = db.CompleteSession(context.Background(), sess.ID)
			}
			if sess.MissingPlaceholders > 0 {
				fmt.Fprintf(os.Stderr, "Warning: %d protected block(s) were dropped by the model and could not be restored\n", sess.MissingPlaceholders)
			}
		}

		if validateResult {
			v := validator.New()
			if ok, verr := v.IsValid(result, targetLang); !ok {
				fmt.Fprintf(os.Stderr, "Warning: output language check failed: %v\n", verr)
			}
		}

		if db != nil && !noCache {
			reqID := uuid.New().String()
			_ = db.SaveRequest(context.Background(), internal.TranslationRequest{
				ID:         reqID,
				SourceText: text,
				SourceLang: sourceLang,
				TargetLang: targetLang,
				Timestamp:  time.Now(),
			})
			_ = db.SaveToMemory(context.Background(), text, sourceLang, targetLang, result, serviceName)
		}

		if err := writeOutput(result); err != nil {
			return err
		}

		fmt.Printf("Successfully translated %s to %s\n", sourceLang, targetLang)
		return nil
	},
}

// loadCheckpoint restores the latest failed session for this input/target
// pair into the orchestrator.
func loadCheckpoint(ctx context.Context, db *store.Store, orch *orchestrator.Orchestrator, budget int) error {
	cp, err := db.LatestFailedSession(ctx, inputFile, targetLang)
	if err != nil {
		return fmt.Errorf("failed to look up checkpoint: %w", err)
	}
	if cp == nil {
		return fmt.Errorf("no failed session to resume for %s → %s", inputFile, targetLang)
	}
	if cp.MaxTokens != budget {
		// A changed budget would repack into a different chunk list; prior
		// results can no longer be mapped onto it.
		return fmt.Errorf("chunk budget changed (checkpoint %d, now %d); rerun without --resume", cp.MaxTokens, budget)
	}

	rows, err := db.GetSessionChunks(ctx, cp.ID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint chunks: %w", err)
	}
	patterns, err := db.GetSessionPatterns(ctx, cp.ID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint patterns: %w", err)
	}

	chunks := make([]string, len(rows))
	translated := make([]string, len(rows))
	for i, r := range rows {
		chunks[i] = r.SourceText
		translated[i] = r.TranslatedText
	}

	orch.RestoreSession(cp.ID, cp.TargetLang, cp.MaxTokens, chunks, translated, patterns, cp.FailedIndex)
	fmt.Fprintf(os.Stderr, "Resuming from chunk %d/%d\n", cp.FailedIndex+1, len(chunks))
	return nil
}

// handleRunFailure checkpoints partial results and reports the failing index.
func handleRunFailure(db *store.Store, orch *orchestrator.Orchestrator, runErr error) error {
	sess := orch.Session()
	if sess == nil || db == nil {
		return runErr
	}

	// The checkpoint row may not exist yet on a first run; a duplicate
	// insert on resume is ignored.
	ctx := context.Background()
	_ = db.CreateSession(ctx, sess.ID, inputFile, sourceLang, sess.TargetLang, sess.MaxTokens, sess.Chunks, sess.Patterns)
	for i, t := range sess.Translated {
		if t != "" {
			_ = db.SaveChunkResult(ctx, sess.ID, i, t)
		}
	}
	_ = db.MarkSessionFailed(ctx, sess.ID, sess.FailedIndex)

	var cancelled *orchestrator.CancelError
	if errors.As(runErr, &cancelled) {
		fmt.Fprintf(os.Stderr, "Cancelled at chunk %d/%d; rerun with --resume to continue\n",
			cancelled.Index+1, len(sess.Chunks))
	} else {
		fmt.Fprintf(os.Stderr, "Failed at chunk %d/%d; rerun with --resume to continue\n",
			sess.FailedIndex+1, len(sess.Chunks))
	}
	return runErr
}

func writeOutput(result string) error {
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if htmlExport {
		htmlPath := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".html"
		title := filepath.Base(outputFile)
		doc := markdown.ToHTMLDocument(title, []byte(result))
		if err := os.WriteFile(htmlPath, []byte(doc), 0644); err != nil {
			return fmt.Errorf("failed to write HTML export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "HTML export written to %s\n", htmlPath)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for translation (required)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	translateCmd.Flags().StringVarP(&credentials, "credentials", "c", "", "Path to Google Cloud credentials")
	translateCmd.Flags().StringVarP(&projectID, "project", "p", "", "Google Cloud Project ID")

	translateCmd.Flags().StringVar(&serviceName, "service", "google", "Translation service to use")
	translateCmd.Flags().StringVar(&modelName, "model", "", "Model name for LLM services")
	translateCmd.Flags().StringVar(&ollamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	translateCmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "Ollama model name")
	translateCmd.Flags().StringVar(&openrouterKey, "openrouter-key", "", "OpenRouter API key")
	translateCmd.Flags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key")

	translateCmd.Flags().IntVar(&maxTokens, "budget", 0, "Per-chunk token budget (0 = config default)")
	translateCmd.Flags().BoolVar(&resumeRun, "resume", false, "Resume the last failed translation of this file")
	translateCmd.Flags().BoolVar(&htmlExport, "html", false, "Also export the result as HTML")
	translateCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	translateCmd.Flags().StringVar(&dbPath, "db", "./data/mdtran.db", "Database path for translation memory and checkpoints")
	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the translation memory cache")
	translateCmd.Flags().Float64Var(&fuzzyThreshold, "fuzzy", 0, "Fuzzy cache match threshold (0 disables)")
	translateCmd.Flags().BoolVar(&useGlossary, "glossary", false, "Inject glossary terms into LLM prompts")
	translateCmd.Flags().BoolVar(&validateResult, "validate", false, "Check the output language after translation")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
	translateCmd.MarkFlagRequired("target")
}
