package client

import (
	"context"
	"net/url"
	"noqbot/pkg/model"
)

type SlotClient struct {
	httpClient *HttpClient
	clientID   string
}

func NewSlotClient(baseUrl, token, clientID string) *SlotClient {
	return &SlotClient{
		httpClient: NewHttpClient(baseUrl, token),
		clientID:   clientID,
	}
}

func (c *SlotClient) base() string {
	return "/api/v1/clients/" + url.PathEscape(c.clientID) + "/slots"
}

func (c *SlotClient) Provision(ctx context.Context, req *model.SlotProvision) (*Response, error) {
	return c.httpClient.POST(ctx, c.base(), req)
}

func (c *SlotClient) Create(ctx context.Context, req *model.SlotDayCreate) (*Response, error) {
	return c.httpClient.POST(ctx, c.base(), req)
}

func (c *SlotClient) List(ctx context.Context, date string) (*Response, error) {
	path := c.base()
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	return c.httpClient.GET(ctx, path)
}

func (c *SlotClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, c.base()+"/"+url.PathEscape(id))
}

func (c *SlotClient) ReplaceTimes(ctx context.Context, id string, req *model.SlotDayUpdate) (*Response, error) {
	return c.httpClient.PUT(ctx, c.base()+"/"+url.PathEscape(id), req)
}

func (c *SlotClient) Delete(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, c.base()+"/"+url.PathEscape(id))
}

func (c *SlotClient) DecodeSlotDay(resp *Response) (*model.SlotDay, error) {
	var day model.SlotDay
	if err := resp.DecodeData(&day); err != nil {
		return nil, err
	}
	return &day, nil
}

func (c *SlotClient) DecodeProvisionResult(resp *Response) (*model.ProvisionResult, error) {
	var result model.ProvisionResult
	if err := resp.DecodeData(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
