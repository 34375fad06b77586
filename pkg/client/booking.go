package client

import (
	"context"
	"net/url"
	"noqbot/pkg/model"
)

const idempotencyHeader = "Idempotency-Key"

type BookingClient struct {
	httpClient *HttpClient
	clientID   string
}

func NewBookingClient(baseUrl, token, clientID string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl, token),
		clientID:   clientID,
	}
}

func (c *BookingClient) base() string {
	return "/api/v1/clients/" + url.PathEscape(c.clientID) + "/bookings"
}

func (c *BookingClient) Create(ctx context.Context, req *model.BookingCreate) (*Response, error) {
	return c.httpClient.POST(ctx, c.base(), req)
}

// CreateIdempotent sends the create with an Idempotency-Key so a retried
// request replays the first response.
func (c *BookingClient) CreateIdempotent(ctx context.Context, req *model.BookingCreate, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, c.base(), req, map[string]string{idempotencyHeader: key})
}

func (c *BookingClient) List(ctx context.Context, date, status string) (*Response, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if status != "" {
		q.Set("status", status)
	}

	path := c.base()
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.httpClient.GET(ctx, path)
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, c.base()+"/"+url.PathEscape(id))
}

func (c *BookingClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.PUT(ctx, c.base()+"/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *BookingClient) Reschedule(ctx context.Context, id string, req *model.BookingReschedule) (*Response, error) {
	return c.httpClient.PUT(ctx, c.base()+"/"+url.PathEscape(id)+"/reschedule", req)
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var booking model.Booking
	if err := resp.DecodeData(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := resp.DecodeData(&bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}
