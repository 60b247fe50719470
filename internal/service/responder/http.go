package responder

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// HTTPTrigger posts tasks as JSON to the responder endpoint.
type HTTPTrigger struct {
	client *resty.Client
	url    string
}

func NewHTTPTrigger(url, apiKey string) *HTTPTrigger {
	client := resty.New().SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPTrigger{client: client, url: url}
}

func (t *HTTPTrigger) Trigger(ctx context.Context, task Task) error {
	resp, err := t.client.R().SetContext(ctx).SetBody(task).Post(t.url)
	if err != nil {
		return fmt.Errorf("post task: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("responder returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
