package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/homeaccess/internal/config"
	"github.com/smallbiznis/homeaccess/internal/notification/domain"
	"github.com/smallbiznis/homeaccess/internal/observability/tracing"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const deliverPath = "/v1/notifications"

type httpClient struct {
	http *resty.Client
	log  *zap.Logger
}

// New builds the notification client. Without a base URL it returns a client that
// refuses delivery, leaving events in the outbox.
func New(cfg config.Config, log *zap.Logger) domain.Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.NotifyBaseURL), "/")
	if baseURL == "" {
		return disabledClient{}
	}
	return NewHTTPClient(baseURL, cfg.NotifyAPIKey, log)
}

func NewHTTPClient(baseURL, apiKey string, log *zap.Logger) domain.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &httpClient{
		http: client,
		log:  log.Named("notification.client"),
	}
}

func (c *httpClient) Deliver(ctx context.Context, msg domain.Message) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", msg.EventID).
		SetBody(msg)
	tracing.InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := req.Post(deliverPath)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	if resp.IsError() {
		c.log.Warn("notification service rejected event",
			zap.String("event_id", msg.EventID),
			zap.String("event_type", msg.EventType),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("deliver notification: unexpected status %d", resp.StatusCode())
	}
	return nil
}

type disabledClient struct{}

func (disabledClient) Deliver(context.Context, domain.Message) error {
	return domain.ErrNotConfigured
}
