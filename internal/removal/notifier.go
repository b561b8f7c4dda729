// Package removal delivers member-removal signals to the platform gateway.
//
// The engine decides removals; this package only carries the signal. The
// webhook notifier retries transient HTTP failures and trips a circuit
// breaker when the gateway is down, so a dead gateway never backs up into
// the rating path.
package removal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// removeRequest is the JSON body POSTed to the gateway.
type removeRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// WebhookNotifier implements domain.RemovalNotifier against an HTTP endpoint.
type WebhookNotifier struct {
	url     string
	client  *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWebhookNotifier creates a notifier that POSTs removal signals to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "removal-webhook",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})

	return &WebhookNotifier{
		url:     url,
		client:  client,
		breaker: breaker,
	}
}

// RemoveMember delivers one removal signal. The call is synchronous from the
// notifier's point of view; fire-and-forget is the caller's concern.
func (n *WebhookNotifier) RemoveMember(ctx context.Context, userID, reason string) error {
	body, err := json.Marshal(removeRequest{UserID: userID, Reason: reason})
	if err != nil {
		return fmt.Errorf("failed to encode removal request: %w", err)
	}

	_, err = n.breaker.Execute(func() (any, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build removal request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to deliver removal signal: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("removal webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// LogNotifier implements domain.RemovalNotifier by logging only. Used when
// no removal webhook is configured.
type LogNotifier struct{}

func (LogNotifier) RemoveMember(_ context.Context, userID, reason string) error {
	slog.Info("Member removal requested (no webhook configured)", "user_id", userID, "reason", reason)
	return nil
}
