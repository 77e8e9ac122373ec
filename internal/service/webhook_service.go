package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"paygate/internal/core/domain"
	"paygate/pkg/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals is the wait before each redelivery.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// EventTransferCommitted is the type of the settlement event.
const EventTransferCommitted = "transfer.committed"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookConfig configures the settlement notifier.
type WebhookConfig struct {
	URL        string
	Secret     string // signs the body; empty sends unsigned events
	MaxRetries int
	Timeout    time.Duration
}

// WebhookNotifier implements ports.SettlementNotifier by posting signed
// settlement events to a single endpoint.
type WebhookNotifier struct {
	cfg        WebhookConfig
	httpClient HTTPClient
	retryAfter []time.Duration
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. A nil httpClient uses an
// http.Client bounded by cfg.Timeout.
func NewWebhookNotifier(cfg WebhookConfig, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if retries > len(webhookRetryIntervals) {
		retries = len(webhookRetryIntervals)
	}
	return &WebhookNotifier{
		cfg:        cfg,
		httpClient: httpClient,
		retryAfter: webhookRetryIntervals[:retries],
		log:        log,
	}
}

// Notify delivers the event in the background.
func (n *WebhookNotifier) Notify(ctx context.Context, record *domain.TransferRecord) {
	event := domain.SettlementEvent{
		EventID:    uuid.New(),
		Type:       EventTransferCommitted,
		Transfer:   record,
		OccurredAt: time.Now().UTC(),
	}
	go n.Deliver(context.WithoutCancel(ctx), event)
}

// Deliver posts event until it is accepted or the retries run out.
func (n *WebhookNotifier) Deliver(ctx context.Context, event domain.SettlementEvent) domain.WebhookDelivery {
	delivery := domain.WebhookDelivery{EventID: event.EventID, URL: n.cfg.URL, Status: domain.WebhookStatusFailed}
	log := n.log.With().Str("event_id", event.EventID.String()).Logger()

	body, err := json.Marshal(event)
	if err != nil {
		delivery.LastError = err.Error()
		log.Error().Err(err).Msg("webhook: failed to marshal event")
		return delivery
	}

	for attempt := 0; attempt <= len(n.retryAfter); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.retryAfter[attempt-1]):
			case <-ctx.Done():
				delivery.LastError = ctx.Err().Error()
				return delivery
			}
		}
		delivery.Attempts = attempt + 1

		status, err := n.post(ctx, body)
		delivery.HTTPStatus = status
		if err != nil {
			delivery.LastError = err.Error()
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}

		delivery.Status = domain.WebhookStatusDelivered
		delivery.LastError = ""
		log.Info().Int("attempt", attempt+1).Int("status", status).Msg("webhook: delivered")
		return delivery
	}

	log.Error().Int("attempts", delivery.Attempts).Msg("webhook: all retry attempts exhausted")
	return delivery
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		req.Header.Set(protocol.HeaderWebhookSignature, protocol.Sign(n.cfg.Secret, string(body)))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
