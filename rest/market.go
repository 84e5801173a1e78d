package rest

import (
	"context"
	"strconv"

	"bybitconn/models"
)

// ServerTime fetches the exchange clock. Useful for diagnosing recv_window
// rejections caused by local clock skew.
func (c *Client) ServerTime(ctx context.Context) (*models.ServerTimeResult, error) {
	var out models.ServerTimeResult
	if err := c.Get(ctx, "/v5/market/time", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Klines fetches candlestick data for a symbol.
func (c *Client) Klines(ctx context.Context, category, symbol, interval string, limit int) (*models.KlineResult, error) {
	params := map[string]string{
		"category": category,
		"symbol":   symbol,
		"interval": interval,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var out models.KlineResult
	if err := c.Get(ctx, "/v5/market/kline", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orderbook fetches an orderbook snapshot.
func (c *Client) Orderbook(ctx context.Context, category, symbol string, limit int) (*models.OrderbookResult, error) {
	params := map[string]string{
		"category": category,
		"symbol":   symbol,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var out models.OrderbookResult
	if err := c.Get(ctx, "/v5/market/orderbook", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tickers fetches the latest ticker set. Symbol may be empty to list the
// whole category.
func (c *Client) Tickers(ctx context.Context, category, symbol string) (*models.TickersResult, error) {
	params := map[string]string{"category": category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var out models.TickersResult
	if err := c.Get(ctx, "/v5/market/tickers", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Instruments fetches instrument definitions, including the price and lot
// size filters needed to round orders correctly.
func (c *Client) Instruments(ctx context.Context, category, symbol string) (*models.InstrumentsResult, error) {
	params := map[string]string{"category": category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var out models.InstrumentsResult
	if err := c.Get(ctx, "/v5/market/instruments-info", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentTrades fetches the most recent public trades for a symbol.
func (c *Client) RecentTrades(ctx context.Context, category, symbol string, limit int) (*models.RecentTradesResult, error) {
	params := map[string]string{
		"category": category,
		"symbol":   symbol,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var out models.RecentTradesResult
	if err := c.Get(ctx, "/v5/market/recent-trade", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
