package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// RelayNotifier posts notifications to the mail relay as JSON. Any
// non-2xx answer counts as a delivery failure.
type RelayNotifier struct {
	client   *http.Client
	relayURL string
}

func NewRelayNotifier(client *http.Client, relayURL string) *RelayNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayNotifier{client: client, relayURL: relayURL}
}

func (n *RelayNotifier) Send(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.relayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail relay request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail relay answered %d", resp.StatusCode)
	}
	return nil
}

// DevNotifier logs notifications instead of delivering them. Used when
// no relay is configured, typically in local development.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) Send(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "notification issued",
		"email", notification.Email,
		"subject", notification.Subject,
		"body", notification.Body,
	)
	return nil
}
