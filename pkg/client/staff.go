package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"orbook/pkg/model"
)

// StaffAvailability is the staff directory's answer for an actor over a
// time range.
type StaffAvailability struct {
	Available bool                        `json:"available"`
	Reason    string                      `json:"reason,omitempty"`
	Conflicts []model.ReservationConflict `json:"conflicts,omitempty"`
}

// StaffClient queries the external staff service for actor availability.
// Every call is bounded by the configured timeout; callers on the booking
// path must treat an error as "unavailable".
type StaffClient struct {
	httpClient *HttpClient
	timeout    time.Duration
}

func NewStaffClient(baseURL string, timeout time.Duration) *StaffClient {
	return &StaffClient{
		httpClient: NewHttpClientWithTimeout(baseURL, timeout),
		timeout:    timeout,
	}
}

func (c *StaffClient) CheckAvailability(ctx context.Context, actorID, role string, startTime, endTime time.Time) (*StaffAvailability, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("start_time", startTime.Format(time.RFC3339))
	q.Set("end_time", endTime.Format(time.RFC3339))
	q.Set("role", role)

	path := "/api/v1/staff/" + url.PathEscape(actorID) + "/availability?" + q.Encode()
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("staff availability request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("staff service returned status %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var wrapper struct {
		Data StaffAvailability `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, fmt.Errorf("could not decode staff availability response: %w", err)
	}

	return &wrapper.Data, nil
}
