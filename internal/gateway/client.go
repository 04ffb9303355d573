// Package gateway notifies the routing gateway about session
// lifecycle events so it can forget expired users in lockstep.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client implements domain.GatewayNotifier
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway notifier
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SessionExpired posts the expiry event for a user
func (c *Client) SessionExpired(ctx context.Context, userID string) error {
	if c.baseURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"user": userID})
	if err != nil {
		return fmt.Errorf("failed to serialize expiry event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/session-expired", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create expiry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("expiry notification failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("expiry notification returned status %d", resp.StatusCode)
	}
	return nil
}
