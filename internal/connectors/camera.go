package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// CameraClient talks to the camera/video-platform API: external events,
// bookmarks, and best-shot snapshots. All calls are fallible remote calls;
// errors surface to the caller as-is.
type CameraClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewCameraClient creates the camera-platform driver.
func NewCameraClient(baseURL, apiToken string, logger *zap.Logger) *CameraClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiToken).
		SetTimeout(15 * time.Second)
	return &CameraClient{http: client, logger: logger.Named("camera")}
}

// CreateEvent pushes an external event into the camera platform scoped to a
// connector.
func (c *CameraClient) CreateEvent(ctx context.Context, connectorID string, payload map[string]interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("/connectors/%s/events", connectorID))
	if err != nil {
		return fmt.Errorf("camera createEvent: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("camera createEvent: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CreateBookmark creates a bookmark on one camera.
func (c *CameraClient) CreateBookmark(ctx context.Context, connectorID, cameraID string, payload map[string]interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("/connectors/%s/cameras/%s/bookmarks", connectorID, cameraID))
	if err != nil {
		return fmt.Errorf("camera createBookmark: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("camera createBookmark: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// FetchBestShot retrieves the best-shot image for a camera around an
// instant. Returns the raw image bytes.
func (c *CameraClient) FetchBestShot(ctx context.Context, connectorID, cameraID string, at time.Time) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("timestamp", at.UTC().Format(time.RFC3339)).
		Get(fmt.Sprintf("/connectors/%s/cameras/%s/best-shot", connectorID, cameraID))
	if err != nil {
		return nil, fmt.Errorf("camera fetchBestShot: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("camera fetchBestShot: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
