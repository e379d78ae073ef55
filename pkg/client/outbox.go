package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"orbook/pkg/model"
)

// OutboxClient drives the operator surface of the outbox.
type OutboxClient struct {
	httpClient *HttpClient
}

func NewOutboxClient(baseURL string) *OutboxClient {
	return &OutboxClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *OutboxClient) Stats() (*Response, error) {
	return c.httpClient.GET(context.Background(), "/api/v1/outbox/stats")
}

func (c *OutboxClient) FailedEvents() (*Response, error) {
	return c.httpClient.GET(context.Background(), "/api/v1/outbox/failed")
}

func (c *OutboxClient) Retry(eventID string) (*Response, error) {
	return c.httpClient.POST(context.Background(), "/api/v1/outbox/retry/"+url.PathEscape(eventID), nil)
}

func (c *OutboxClient) Process() (*Response, error) {
	return c.httpClient.POST(context.Background(), "/api/v1/outbox/process", nil)
}

func (c *OutboxClient) DecodeStats(resp *Response) (*model.OutboxStats, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode stats wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var stats model.OutboxStats
	if err := json.Unmarshal(wrapper.Data, &stats); err != nil {
		return nil, fmt.Errorf("could not decode stats json:\n%+v\n%s", resp.ToString(), err)
	}

	return &stats, nil
}
