package rest

import (
	"context"

	"bybitconn/models"
)

// Positions lists open positions. Symbol may be empty when settleCoin
// filtering is done server side.
func (c *Client) Positions(ctx context.Context, category, symbol string) (*models.PositionListResult, error) {
	params := map[string]string{"category": category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var out models.PositionListResult
	if err := c.Get(ctx, "/v5/position/list", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLeverage updates buy and sell leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, req *models.SetLeverageRequest) error {
	return c.Post(ctx, "/v5/position/set-leverage", req, true, nil)
}

// WalletBalance fetches balances for the given account type, e.g. "UNIFIED".
func (c *Client) WalletBalance(ctx context.Context, accountType string) (*models.WalletBalanceResult, error) {
	params := map[string]string{"accountType": accountType}
	var out models.WalletBalanceResult
	if err := c.Get(ctx, "/v5/account/wallet-balance", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
