package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LLMProviderError mirrors SpeechProviderError for the text-generation API.
type LLMProviderError struct {
	StatusCode int
	Body       string
}

func (e *LLMProviderError) Error() string {
	return fmt.Sprintf("llm service returned status %d: %s", e.StatusCode, e.Body)
}

// GenerationResult is the structured study material returned by the model,
// kept opaque as raw JSON, plus the cost attributed to the call.
type GenerationResult struct {
	Payload json.RawMessage
	Model   string
	CostUSD decimal.Decimal
}

// LLMClient wraps the third-party chat-completions API used to derive
// learning content from a transcript.
type LLMClient interface {
	GenerateLearningContent(ctx context.Context, transcript string) (*GenerationResult, error)
}

type llmClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration, logger zerolog.Logger) LLMClient {
	return &llmClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "LLMClient").Logger(),
	}
}

const learningContentPrompt = `You are an assistant that turns lecture transcripts into study material.
Respond with a single JSON object with the keys:
"title" (string), "summary" (string), "key_points" (array of strings),
"sections" (array of {"heading": string, "body": string}),
"quiz" (array of {"question": string, "answer": string}).
Respond with JSON only, no surrounding prose.`

// Token prices per 1K tokens, used to attribute actual cost to a call.
var (
	promptTokenPriceUSD     = decimal.NewFromFloat(0.00015)
	completionTokenPriceUSD = decimal.NewFromFloat(0.0006)
)

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *llmClient) GenerateLearningContent(ctx context.Context, transcript string) (*GenerationResult, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: learningContentPrompt},
			{Role: "user", Content: transcript},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to llm service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from llm service")
			return nil, &LLMProviderError{StatusCode: resp.StatusCode}
		}
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(bodyBytes)).
			Msg("LLM service returned error")
		return nil, &LLMProviderError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decoding llm service response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("llm service returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	// Some models wrap JSON in a markdown fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload json.RawMessage
	if json.Valid([]byte(content)) {
		payload = json.RawMessage(content)
	} else {
		c.logger.Warn().Msg("LLM returned non-JSON content; wrapping as raw text")
		wrapped, err := json.Marshal(map[string]string{"raw": content})
		if err != nil {
			return nil, fmt.Errorf("wrapping raw llm output: %w", err)
		}
		payload = wrapped
	}

	cost := decimal.NewFromInt(completion.Usage.PromptTokens).Mul(promptTokenPriceUSD).
		Add(decimal.NewFromInt(completion.Usage.CompletionTokens).Mul(completionTokenPriceUSD)).
		Div(decimal.NewFromInt(1000))

	return &GenerationResult{Payload: payload, Model: c.model, CostUSD: cost}, nil
}
