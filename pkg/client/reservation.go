package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"orbook/pkg/model"
)

// ReservationClient is a typed HTTP client for the reservations API, used
// by the integration suite and by sibling services.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *ReservationClient) Create(body any, idempotencyKey string) (*Response, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	return c.httpClient.POSTWithHeaders(context.Background(), "/api/v1/reservations", body, headers)
}

func (c *ReservationClient) GetAll(limit int, offset int64) (*Response, error) {
	path := fmt.Sprintf("/api/v1/reservations?limit=%d&offset=%d", limit, offset)
	return c.httpClient.GET(context.Background(), path)
}

func (c *ReservationClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET(context.Background(), "/api/v1/reservations/id/"+url.PathEscape(id))
}

func (c *ReservationClient) GetByRoom(roomID string) (*Response, error) {
	return c.httpClient.GET(context.Background(), "/api/v1/reservations/room/"+url.PathEscape(roomID))
}

func (c *ReservationClient) GetBySurgeon(surgeonID string) (*Response, error) {
	return c.httpClient.GET(context.Background(), "/api/v1/reservations/surgeon/"+url.PathEscape(surgeonID))
}

func (c *ReservationClient) Update(id string, body any) (*Response, error) {
	return c.httpClient.PATCH(context.Background(), "/api/v1/reservations/id/"+url.PathEscape(id), body)
}

func (c *ReservationClient) Cancel(id string, reason string) (*Response, error) {
	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}
	return c.httpClient.POST(context.Background(), "/api/v1/reservations/id/"+url.PathEscape(id)+"/cancel", body)
}

func (c *ReservationClient) CheckAvailability(roomID, surgeonID, startTime, endTime string) (*Response, error) {
	body := map[string]string{
		"operating_room_id": roomID,
		"surgeon_id":        surgeonID,
		"start_time":        startTime,
		"end_time":          endTime,
	}
	return c.httpClient.POST(context.Background(), "/api/v1/reservations/check-availability", body)
}

func (c *ReservationClient) DecodeReservation(resp *Response) (*model.Reservation, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode reservation wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var reservation model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservation); err != nil {
		return nil, fmt.Errorf("could not decode reservation json:\n%+v\n%s", resp.ToString(), err)
	}

	return &reservation, nil
}

func (c *ReservationClient) DecodeReservations(resp *Response) ([]*model.Reservation, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode list wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var reservations []*model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservations); err != nil {
		return nil, fmt.Errorf("could not decode reservation list:\n%+v\n%s", resp.ToString(), err)
	}

	return reservations, nil
}
