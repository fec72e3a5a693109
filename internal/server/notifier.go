package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

var (
	// ErrInvalidCallbackURL is returned for a callback URL that is not absolute http(s)
	ErrInvalidCallbackURL = errors.New("invalid callback URL")
	// ErrMetadataEndpoint is returned for callbacks aimed at cloud metadata services
	ErrMetadataEndpoint = errors.New("callback URL targets a metadata endpoint")
)

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"fd00:ec2::254":            true,
}

// NotificationPayload is the JSON body posted to a batch callback URL
type NotificationPayload struct {
	BatchID   string              `json:"batch_id"`
	Status    models.BatchStatus  `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	StartedAt time.Time           `json:"started_at,omitempty"`
	EndedAt   time.Time           `json:"ended_at,omitempty"`
	Error     string              `json:"error,omitempty"`
	Result    *models.BatchResult `json:"result,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// Notifier posts terminal batches to their callback URL
type Notifier struct {
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry:  DefaultRetryPolicy(),
		logger: logger.Default,
	}
}

// WithRetryPolicy replaces the default retry policy
func (n *Notifier) WithRetryPolicy(p RetryPolicy) *Notifier {
	n.retry = p
	return n
}

// validateCallbackURL accepts absolute http(s) URLs that do not target a metadata service
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{batch_id}", "x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallbackURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidCallbackURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}
	if metadataHosts[strings.ToLower(host)] {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	return nil
}

// Notify posts b to its callback URL in the background.
// A nil Notifier or an empty callback URL does nothing.
func (n *Notifier) Notify(b models.Batch) {
	if n == nil || b.CallbackURL == "" {
		return
	}

	finalURL := strings.ReplaceAll(b.CallbackURL, "{batch_id}", b.ID)
	payload := NotificationPayload{
		BatchID:   b.ID,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		StartedAt: b.StartedAt,
		EndedAt:   b.EndedAt,
		Error:     b.Error,
		Result:    b.Result,
		Timestamp: time.Now().UTC().UnixMilli(),
	}
	go n.send(finalURL, payload)
}

// send posts payload, retrying as the retry policy allows
func (n *Notifier) send(callbackURL string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to marshal notification payload", "batch_id", payload.BatchID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if !n.retry.ShouldRetry(attempt-1, lastErr) {
				break
			}
			delay := n.retry.Delay(attempt)
			n.logger.Debug("Retrying notification", "batch_id", payload.BatchID, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "racesim/1.0")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			n.logger.Warn("Notification attempt failed", "batch_id", payload.BatchID, "attempt", attempt+1, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.logger.Info("Notification sent", "batch_id", payload.BatchID, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		n.logger.Warn("Notification returned non-2xx status", "batch_id", payload.BatchID, "status_code", resp.StatusCode, "attempt", attempt+1)
	}

	n.logger.Error("Failed to send notification after retries",
		"batch_id", payload.BatchID,
		"max_retries", n.retry.MaxRetries,
		"last_error", lastErr)
}
