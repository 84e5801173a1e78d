package models

/////////////////////////////////////////////////////////////////////////////
////////////////////////////// ACCOUNT / POSITION ///////////////////////////
/////////////////////////////////////////////////////////////////////////////

// CoinBalance is a per-coin entry inside a wallet account.
type CoinBalance struct {
	Coin                string `json:"coin"`
	WalletBalance       string `json:"walletBalance"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
	Equity              string `json:"equity"`
	UnrealisedPnl       string `json:"unrealisedPnl"`
	CumRealisedPnl      string `json:"cumRealisedPnl"`
}

// WalletAccount is a single entry of /v5/account/wallet-balance.
type WalletAccount struct {
	AccountType        string        `json:"accountType"`
	TotalEquity        string        `json:"totalEquity"`
	TotalMarginBalance string        `json:"totalMarginBalance"`
	Coin               []CoinBalance `json:"coin"`
}

// WalletBalanceResult mirrors /v5/account/wallet-balance.
type WalletBalanceResult struct {
	List []WalletAccount `json:"list"`
}

// Position is a single entry of /v5/position/list.
type Position struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	PositionValue string `json:"positionValue"`
	Leverage      string `json:"leverage"`
	MarkPrice     string `json:"markPrice"`
	LiqPrice      string `json:"liqPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	CreatedTime   string `json:"createdTime"`
	UpdatedTime   string `json:"updatedTime"`
}

// PositionListResult mirrors /v5/position/list.
type PositionListResult struct {
	Category       string     `json:"category"`
	List           []Position `json:"list"`
	NextPageCursor string     `json:"nextPageCursor"`
}

// SetLeverageRequest is the body of POST /v5/position/set-leverage.
type SetLeverageRequest struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	BuyLeverage  string `json:"buyLeverage"`
	SellLeverage string `json:"sellLeverage"`
}
