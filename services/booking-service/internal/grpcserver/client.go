package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the availability service on conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) GetAvailability(ctx context.Context, date, serviceID, staffID string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"date": date, "service_id": serviceID, "staff_id": staffID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodGetAvailability, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAvailableDates(ctx context.Context, serviceID string) ([]string, error) {
	req, err := structpb.NewStruct(map[string]any{"service_id": serviceID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodListAvailableDates, req, out); err != nil {
		return nil, err
	}
	var dates []string
	for _, v := range out.GetFields()["dates"].GetListValue().GetValues() {
		dates = append(dates, v.GetStringValue())
	}
	return dates, nil
}
