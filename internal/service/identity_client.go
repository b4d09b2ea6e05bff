package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// IdentityClient talks to the identity provider's admin API. Deleting the
// provider-side account is the last step of account deletion and is treated
// as best effort by callers.
type IdentityClient interface {
	DeleteAccount(ctx context.Context, userID string) error
}

type identityClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewIdentityClient(baseURL, apiKey string, logger zerolog.Logger) IdentityClient {
	return &identityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("service", "IdentityClient").Logger(),
	}
}

func (c *identityClient) DeleteAccount(ctx context.Context, userID string) error {
	if c.baseURL == "" {
		c.logger.Warn().Str("user_id", userID).Msg("Identity admin URL not configured; skipping provider-side deletion")
		return nil
	}
	url := fmt.Sprintf("%s/admin/users/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request to identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}
