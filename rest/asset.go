package rest

import (
	"context"

	"bybitconn/models"
)

// AccountCoinBalances fetches transferable balances for an account type.
// Coin may be empty to list every coin.
func (c *Client) AccountCoinBalances(ctx context.Context, accountType, coin string) (*models.AccountCoinBalanceResult, error) {
	params := map[string]string{"accountType": accountType}
	if coin != "" {
		params["coin"] = coin
	}
	var out models.AccountCoinBalanceResult
	if err := c.Get(ctx, "/v5/asset/transfer/query-account-coins-balance", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InterTransfer moves funds between account types under the same UID.
func (c *Client) InterTransfer(ctx context.Context, req *models.InterTransferRequest) (*models.TransferAck, error) {
	var out models.TransferAck
	if err := c.Post(ctx, "/v5/asset/transfer/inter-transfer", req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InterTransferList lists past inter account transfers, newest first.
func (c *Client) InterTransferList(ctx context.Context, coin, cursor string) (*models.InterTransferListResult, error) {
	params := map[string]string{}
	if coin != "" {
		params["coin"] = coin
	}
	if cursor != "" {
		params["cursor"] = cursor
	}
	var out models.InterTransferListResult
	if err := c.Get(ctx, "/v5/asset/transfer/query-inter-transfer-list", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
