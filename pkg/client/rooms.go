package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RoomsClient queries the external operating-room directory for the
// usability flag of a room. Bounded timeout, error means "not usable" on
// the booking path.
type RoomsClient struct {
	httpClient *HttpClient
	timeout    time.Duration
}

func NewRoomsClient(baseURL string, timeout time.Duration) *RoomsClient {
	return &RoomsClient{
		httpClient: NewHttpClientWithTimeout(baseURL, timeout),
		timeout:    timeout,
	}
}

func (c *RoomsClient) IsRoomUsable(ctx context.Context, roomID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := "/api/v1/operating-rooms/" + url.PathEscape(roomID)
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return false, fmt.Errorf("room lookup request failed: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("rooms service returned status %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var wrapper struct {
		Data struct {
			IsActive      bool `json:"is_active"`
			IsMaintenance bool `json:"is_maintenance"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return false, fmt.Errorf("could not decode room response: %w", err)
	}

	return wrapper.Data.IsActive && !wrapper.Data.IsMaintenance, nil
}
