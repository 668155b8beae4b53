package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// RelayClient sends OTP mail through an HTTP mail relay (JSON POST with a
// bearer API key).
type RelayClient struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewRelayClient returns a client that posts to the given relay URL with the
// given API key and From address.
func NewRelayClient(apiKey, baseURL, from string) *RelayClient {
	return &RelayClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendOTP mails the code to email. Does not log the code.
func (c *RelayClient) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	if c.APIKey == "" {
		return fmt.Errorf("mail: API key not configured")
	}
	body := map[string]interface{}{
		"from":    c.From,
		"to":      email,
		"subject": "Your verification code",
		"text": fmt.Sprintf("Your verification code is %s. It expires at %s.",
			code, expiresAt.UTC().Format(time.RFC1123)),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
