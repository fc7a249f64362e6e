package translator

import (
	"context"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the fallback chat model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIService translates through the official openai-go SDK (chat
// completions).
type OpenAIService struct {
	apiKey  string
	baseURL string
	model   string
}

func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIService{apiKey: apiKey, baseURL: baseURL, model: model}
}

func (s *OpenAIService) Name() string {
	return "openai"
}

func (s *OpenAIService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	apiKey := s.apiKey
	if apiKey == "" && cfg.APIKey != "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		result.Error = "OpenAI API key required"
		return result, fmt.Errorf("OpenAI API key required")
	}

	model := cfg.Model
	if model == "" {
		model = s.model
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	systemPrompt := buildSystemPrompt(resolveSourceLang(req.SourceLang), req.TargetLang, req.GlossaryTerms, req.Instructions)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(req.Text),
		},
	})
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result, err
	}
	if len(resp.Choices) == 0 {
		result.Error = "empty response from API"
		return result, fmt.Errorf("empty response from API")
	}

	result.TranslatedText = resp.Choices[0].Message.Content
	result.Confidence = 0.8
	result.Metadata = map[string]string{"model": model}

	return result, nil
}

func (s *OpenAIService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}
	return nil
}

func (s *OpenAIService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko", "ar", "uk"}, nil
}
