package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
)

const (
	SignatureHeader = "X-League-Signature"
	EventHeader     = "X-League-Event"
	DeliveryHeader  = "X-League-Delivery"
)

// StatusError is a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// retryable reports whether a failed attempt may succeed later. Transport
// errors, 429 and 5xx are retried.
func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// Sign returns the signature header value for body
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// payload renders the request body for an endpoint format
func payload(format Format, event *audit.Event) ([]byte, error) {
	var v any
	switch format {
	case FormatSlack:
		v = FormatSlackMessage(event)
	case FormatTeams:
		v = FormatTeamsMessage(event)
	default:
		v = event
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

func (n *Notifier) deliver(ctx context.Context, d delivery) error {
	body, err := payload(d.endpoint.Format, d.event)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error { return n.send(ctx, d.endpoint, d.event, body) },
		retry.Context(ctx),
		retry.Attempts(n.cfg.MaxAttempts),
		retry.Delay(n.cfg.RetryDelay),
		retry.MaxDelay(n.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(attempt uint, err error) {
			n.logger.WithError(err).WithFields(map[string]any{
				"attempt":  attempt + 1,
				"event_id": d.event.ID.String(),
			}).Warn("retrying webhook delivery")
		}),
	)
}

func (n *Notifier) send(ctx context.Context, ep Endpoint, event *audit.Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event.Type))
	req.Header.Set(DeliveryHeader, event.ID.String())
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
