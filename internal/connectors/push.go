package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PushResult is the notification gateway's own verdict on a delivery.
type PushResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// PushClient talks to the push-notification gateway.
type PushClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewPushClient creates the push-notification driver.
func NewPushClient(baseURL string, logger *zap.Logger) *PushClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &PushClient{http: client, logger: logger.Named("push")}
}

// SendNotification delivers one notification to a recipient key using the
// organization's API token. A transport error or error-status response is
// returned as an error; a 2xx response with the service reporting failure is
// surfaced through PushResult.
func (p *PushClient) SendNotification(ctx context.Context, apiToken, recipientKey string, params map[string]string) (*PushResult, error) {
	body := map[string]interface{}{
		"token": apiToken,
		"user":  recipientKey,
	}
	for k, v := range params {
		body[k] = v
	}

	var result PushResult
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return nil, fmt.Errorf("push sendNotification: %w", err)
	}
	if resp.IsError() {
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("push sendNotification: %v", result.Errors)
		}
		return nil, fmt.Errorf("push sendNotification: status %d", resp.StatusCode())
	}
	return &result, nil
}
