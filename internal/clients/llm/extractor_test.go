package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func newTestExtractor(t *testing.T, content string, captured *capturedRequest) *Extractor {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completion(content))
	}))
	t.Cleanup(server.Close)

	return NewExtractor(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "test-model",
	}, zerolog.Nop())
}

func TestExtractEnterprise(t *testing.T) {
	var req capturedRequest
	e := newTestExtractor(t,
		`{"sectors": ["banks", "internet"], "risk_level": "high", "capital": 250000, "exclude": ["Meta", "GS"]}`,
		&req)

	params, err := e.Extract(context.Background(), "Invest 250k in banks and internet, high risk, no Meta or GS", domain.VariantEnterprise)
	require.NoError(t, err)

	assert.Equal(t, []string{"banks", "internet"}, params.Sectors)
	require.NotNil(t, params.RiskLevel)
	assert.Equal(t, "high", *params.RiskLevel)
	require.NotNil(t, params.Capital)
	assert.Equal(t, 250000.0, *params.Capital)
	assert.Equal(t, []string{"Meta", "GS"}, params.Exclude)

	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, 150, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "'exclude'")
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Contains(t, req.Messages[1].Content, `"Invest 250k in banks and internet`)
}

func TestExtractIndividualDropsExclusions(t *testing.T) {
	var req capturedRequest
	e := newTestExtractor(t,
		"```json\n{\"sectors\": [\"healthcare\"], \"risk_level\": \"low\", \"capital\": \"5000\", \"exclude\": [\"PFE\"]}\n```",
		&req)

	params, err := e.Extract(context.Background(), "5000 dollars into healthcare, low risk", domain.VariantIndividual)
	require.NoError(t, err)

	assert.Equal(t, []string{"healthcare"}, params.Sectors)
	require.NotNil(t, params.Capital)
	assert.Equal(t, 5000.0, *params.Capital)
	assert.Nil(t, params.Exclude)
	assert.NotContains(t, req.Messages[0].Content, "'exclude'")
}

func TestExtractUnparsableOutput(t *testing.T) {
	e := newTestExtractor(t, "Sorry, I cannot help with that.", nil)

	_, err := e.Extract(context.Background(), "hello", domain.VariantIndividual)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExtractTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "upstream down"}}`)
	}))
	defer server.Close()

	e := NewExtractor(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, zerolog.Nop())
	_, err := e.Extract(context.Background(), "hello", domain.VariantEnterprise)
	require.Error(t, err)
	assert.NotEqual(t, domain.KindValidation, domain.KindOf(err))
}

func TestParseParameters(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, p *domain.ExtractedParameters)
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"sectors": ["banks"], "risk_level": "moderate", "capital": 1000.5}`,
			check: func(t *testing.T, p *domain.ExtractedParameters) {
				assert.Equal(t, 1000.5, *p.Capital)
				assert.Equal(t, "moderate", *p.RiskLevel)
			},
		},
		{
			name:    "prose around object",
			content: "Here you go: {\"sectors\": [\"consumer\"], \"capital\": 10} Hope it helps.",
			check: func(t *testing.T, p *domain.ExtractedParameters) {
				assert.Equal(t, []string{"consumer"}, p.Sectors)
				assert.Nil(t, p.RiskLevel)
			},
		},
		{
			name:    "missing capital",
			content: `{"sectors": ["banks"], "risk_level": "low"}`,
			check: func(t *testing.T, p *domain.ExtractedParameters) {
				assert.Nil(t, p.Capital)
			},
		},
		{name: "no object", content: "nothing here", wantErr: true},
		{name: "broken json", content: `{"sectors": [`, wantErr: true},
		{name: "non numeric capital", content: `{"capital": "lots"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseParameters(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}
