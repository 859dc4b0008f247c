// Package llm extracts portfolio request parameters from free-form text
// through an OpenAI-compatible chat-completions endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/allocator/internal/domain"
	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	maxTokens   = 150
	temperature = 0.0
)

const individualPrompt = "You are an assistant that extracts individual investor investment parameters from text. " +
	"Return only a JSON object with the keys: 'sectors' (list of strings chosen from: 'semiconductor', 'banks', 'internet', 'healthcare', 'consumer'), " +
	"'risk_level' (string; one of 'very low', 'low', 'moderate', 'high', 'very high'), and 'capital' (number). " +
	"Map any synonyms to these canonical values."

const enterprisePrompt = "You are an assistant that extracts enterprise investment parameters from text. " +
	"Return only a JSON object with the keys: 'sectors' (list of strings chosen from: 'semiconductor', 'banks', 'internet', 'healthcare', 'consumer'), " +
	"'risk_level' (string; one of 'very low', 'low', 'moderate', 'high', 'very high'), " +
	"'capital' (number), and 'exclude' (list of strings with stock tickers or company names). " +
	"Map any synonyms to these canonical values."

// Config configures the chat-completions endpoint.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// Extractor implements domain.ParameterExtractor.
type Extractor struct {
	cli   oa.Client
	model string
	log   zerolog.Logger
}

// NewExtractor creates an extractor for cfg.
func NewExtractor(cfg Config, log zerolog.Logger) *Extractor {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Extractor{
		cli:   oa.NewClient(opts...),
		model: cfg.Model,
		log:   log.With().Str("client", "llm").Logger(),
	}
}

// Extract asks the model for the request parameters in message. The
// enterprise variant also asks for exclusions. Output that is not a JSON
// object is reported as a validation error.
func (e *Extractor) Extract(ctx context.Context, message string, variant domain.Variant) (*domain.ExtractedParameters, error) {
	prompt := individualPrompt
	if variant == domain.VariantEnterprise {
		prompt = enterprisePrompt
	}

	resp, err := e.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(e.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(prompt),
			oa.UserMessage("Extract the parameters from this text: \"" + message + "\""),
		},
		Temperature: oa.Float(temperature),
		MaxTokens:   oa.Int(maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewValidationError(nil, "language model returned no answer")
	}

	content := resp.Choices[0].Message.Content
	e.log.Debug().
		Str("variant", string(variant)).
		Str("content", content).
		Msg("Extracted parameters")

	params, err := parseParameters(content)
	if err != nil {
		return nil, domain.NewValidationError(err, "could not understand the request: "+err.Error())
	}
	if variant != domain.VariantEnterprise {
		params.Exclude = nil
	}
	return params, nil
}

// rawParameters tolerates capital given as a quoted number.
type rawParameters struct {
	Sectors   []string    `json:"sectors"`
	RiskLevel *string     `json:"risk_level"`
	Capital   json.Number `json:"capital"`
	Exclude   []string    `json:"exclude"`
}

// parseParameters decodes the model's answer, ignoring a Markdown code
// fence and any prose around the JSON object.
func parseParameters(content string) (*domain.ExtractedParameters, error) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first < 0 || last < first {
		return nil, errors.New("no JSON object in model output")
	}

	var raw rawParameters
	if err := json.Unmarshal([]byte(text[first:last+1]), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in model output: %w", err)
	}

	params := &domain.ExtractedParameters{
		Sectors:   raw.Sectors,
		RiskLevel: raw.RiskLevel,
		Exclude:   raw.Exclude,
	}
	if raw.Capital != "" {
		capital, err := raw.Capital.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid capital %q: %w", raw.Capital, err)
		}
		params.Capital = &capital
	}
	return params, nil
}
