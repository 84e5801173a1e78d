package models

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// TRADING //////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// PlaceOrderRequest is the body of POST /v5/order/create. Quantities and
// prices stay strings so exchange precision rules survive the round trip.
type PlaceOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	TakeProfit  string `json:"takeProfit,omitempty"`
	StopLoss    string `json:"stopLoss,omitempty"`
}

// CancelOrderRequest is the body of POST /v5/order/cancel. Either OrderID or
// OrderLinkID must be set.
type CancelOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	OrderID     string `json:"orderId,omitempty"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
}

// CancelAllRequest is the body of POST /v5/order/cancel-all.
type CancelAllRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol,omitempty"`
	BaseCoin string `json:"baseCoin,omitempty"`
}

// OrderAck is the result of order create/cancel calls.
type OrderAck struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// Order is a single entry of /v5/order/realtime and /v5/order/history.
type Order struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	OrderStatus string `json:"orderStatus"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
	TimeInForce string `json:"timeInForce"`
	CreatedTime string `json:"createdTime"`
	UpdatedTime string `json:"updatedTime"`
}

// OrderListResult wraps paginated order listings.
type OrderListResult struct {
	Category       string  `json:"category"`
	List           []Order `json:"list"`
	NextPageCursor string  `json:"nextPageCursor"`
}
