package rest

import (
	"context"

	"bybitconn/models"
)

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*models.OrderAck, error) {
	var out models.OrderAck
	if err := c.Post(ctx, "/v5/order/create", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder cancels a single order by exchange or client order id.
func (c *Client) CancelOrder(ctx context.Context, req *models.CancelOrderRequest) (*models.OrderAck, error) {
	var out models.OrderAck
	if err := c.Post(ctx, "/v5/order/cancel", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAllOrders cancels every open order matching the request filter.
func (c *Client) CancelAllOrders(ctx context.Context, req *models.CancelAllRequest) error {
	return c.Post(ctx, "/v5/order/cancel-all", req, true, nil)
}

// OpenOrders lists current open orders. Symbol may be empty to list the
// whole category.
func (c *Client) OpenOrders(ctx context.Context, category, symbol string) (*models.OrderListResult, error) {
	params := map[string]string{"category": category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var out models.OrderListResult
	if err := c.Get(ctx, "/v5/order/realtime", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderHistory lists closed and cancelled orders.
func (c *Client) OrderHistory(ctx context.Context, category, symbol, cursor string) (*models.OrderListResult, error) {
	params := map[string]string{"category": category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if cursor != "" {
		params["cursor"] = cursor
	}
	var out models.OrderListResult
	if err := c.Get(ctx, "/v5/order/history", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
