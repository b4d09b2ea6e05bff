package service

import (
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

// SpeechProviderError carries the provider's HTTP status so handlers can pass
// rate-limit and quota signals through (429/402) instead of flattening
// everything to 500.
type SpeechProviderError struct {
	StatusCode int
	Body       string
}

func (e *SpeechProviderError) Error() string {
	return fmt.Sprintf("speech service returned status %d: %s", e.StatusCode, e.Body)
}

// TranscriptionResult is the provider's response for one audio file.
type TranscriptionResult struct {
	Text            string          `json:"text"`
	Language        string          `json:"language"`
	DurationSeconds float64         `json:"duration_seconds"`
	CostUSD         decimal.Decimal `json:"cost_usd"`
}

// SpeechClient wraps the third-party speech-to-text API.
type SpeechClient interface {
	Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*TranscriptionResult, error)
}

type speechClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewSpeechClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) SpeechClient {
	return &speechClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "SpeechClient").Logger(),
	}
}

func (c *speechClient) Transcribe(ctx context.Context, audio io.Reader, mimeType string) (*TranscriptionResult, error) {
	url := fmt.Sprintf("%s/v1/transcribe", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, audio)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to speech service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from speech service")
			return nil, &SpeechProviderError{StatusCode: resp.StatusCode}
		}
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(bodyBytes)).
			Msg("Speech service returned error")
		return nil, &SpeechProviderError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding speech service response: %w", err)
	}
	c.logger.Info().
		Str("duration", time.Since(start).String()).
		Float64("audio_seconds", result.DurationSeconds).
		Msg("Transcription succeeded")
	return &result, nil
}
