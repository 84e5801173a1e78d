package models

/////////////////////////////////////////////////////////////////////////////
//////////////////////////////// MARKET DATA ////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Categories accepted by the v5 market and trade endpoints.
const (
	CategoryLinear  = "linear"
	CategoryInverse = "inverse"
	CategorySpot    = "spot"
	CategoryOption  = "option"
)

// ServerTimeResult mirrors /v5/market/time.
type ServerTimeResult struct {
	TimeSecond string `json:"timeSecond"`
	TimeNano   string `json:"timeNano"`
}

// KlineResult mirrors /v5/market/kline. Each entry is
// [start, open, high, low, close, volume, turnover] as strings.
type KlineResult struct {
	Category string     `json:"category"`
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"`
}

// OrderbookResult mirrors /v5/market/orderbook. Levels are [price, size]
// pairs, bids descending and asks ascending.
type OrderbookResult struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	TS       int64      `json:"ts"`
	UpdateID int64      `json:"u"`
}

// Ticker is a single entry of /v5/market/tickers. Only the fields shared by
// all categories are modelled.
type Ticker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	Bid1Price    string `json:"bid1Price"`
	Ask1Price    string `json:"ask1Price"`
	HighPrice24H string `json:"highPrice24h"`
	LowPrice24H  string `json:"lowPrice24h"`
	Volume24H    string `json:"volume24h"`
	Turnover24H  string `json:"turnover24h"`
}

// TickersResult mirrors /v5/market/tickers.
type TickersResult struct {
	Category string   `json:"category"`
	List     []Ticker `json:"list"`
}

// Instrument is a single entry of /v5/market/instruments-info.
type Instrument struct {
	Symbol        string `json:"symbol"`
	BaseCoin      string `json:"baseCoin"`
	QuoteCoin     string `json:"quoteCoin"`
	Status        string `json:"status"`
	PriceFilter   struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		MinOrderQty string `json:"minOrderQty"`
		MaxOrderQty string `json:"maxOrderQty"`
		QtyStep     string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
}

// InstrumentsResult mirrors /v5/market/instruments-info.
type InstrumentsResult struct {
	Category string       `json:"category"`
	List     []Instrument `json:"list"`
}

// RecentTrade is a single entry of /v5/market/recent-trade.
type RecentTrade struct {
	ExecID string `json:"execId"`
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Size   string `json:"size"`
	Side   string `json:"side"`
	Time   string `json:"time"`
}

// RecentTradesResult mirrors /v5/market/recent-trade.
type RecentTradesResult struct {
	Category string        `json:"category"`
	List     []RecentTrade `json:"list"`
}
