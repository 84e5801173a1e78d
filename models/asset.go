package models

// AssetCoinBalance is one coin entry from the transferable balance query.
type AssetCoinBalance struct {
	Coin            string `json:"coin"`
	WalletBalance   string `json:"walletBalance"`
	TransferBalance string `json:"transferBalance"`
	Bonus           string `json:"bonus"`
}

// AccountCoinBalanceResult is the payload of
// /v5/asset/transfer/query-account-coins-balance.
type AccountCoinBalanceResult struct {
	AccountType string             `json:"accountType"`
	MemberID    string             `json:"memberId"`
	Balance     []AssetCoinBalance `json:"balance"`
}

// InterTransferRequest moves funds between account types under one UID. The
// transfer id must be a fresh UUID; the exchange uses it for idempotency.
type InterTransferRequest struct {
	TransferID      string `json:"transferId"`
	Coin            string `json:"coin"`
	Amount          string `json:"amount"`
	FromAccountType string `json:"fromAccountType"`
	ToAccountType   string `json:"toAccountType"`
}

// TransferAck confirms an accepted transfer.
type TransferAck struct {
	TransferID string `json:"transferId"`
}

// TransferRecord is one historical inter account transfer.
type TransferRecord struct {
	TransferID      string `json:"transferId"`
	Coin            string `json:"coin"`
	Amount          string `json:"amount"`
	FromAccountType string `json:"fromAccountType"`
	ToAccountType   string `json:"toAccountType"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status"`
}

// InterTransferListResult is the paginated transfer history payload.
type InterTransferListResult struct {
	List           []TransferRecord `json:"list"`
	NextPageCursor string           `json:"nextPageCursor"`
}
