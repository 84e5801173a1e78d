package models

import (
	"fmt"
	"strings"
)

// Private stream topics. These carry account events and require an
// authenticated connection.
const (
	TopicPosition  = "position"
	TopicExecution = "execution"
	TopicOrder     = "order"
	TopicWallet    = "wallet"
	TopicFastExec  = "execution.fast"
)

// OrderbookTopic builds the public orderbook stream topic for the given
// depth, e.g. "orderbook.50.BTCUSDT".
func OrderbookTopic(depth int, symbol string) string {
	return fmt.Sprintf("orderbook.%d.%s", depth, strings.ToUpper(symbol))
}

// TradeTopic builds the public trade stream topic, e.g. "publicTrade.BTCUSDT".
func TradeTopic(symbol string) string {
	return "publicTrade." + strings.ToUpper(symbol)
}

// TickerTopic builds the ticker stream topic, e.g. "tickers.BTCUSDT".
func TickerTopic(symbol string) string {
	return "tickers." + strings.ToUpper(symbol)
}

// KlineTopic builds the kline stream topic, e.g. "kline.5.BTCUSDT".
func KlineTopic(interval, symbol string) string {
	return fmt.Sprintf("kline.%s.%s", interval, strings.ToUpper(symbol))
}

// LiquidationTopic builds the liquidation stream topic.
func LiquidationTopic(symbol string) string {
	return "liquidation." + strings.ToUpper(symbol)
}

// IsPrivateTopic reports whether the topic belongs to the private stream and
// therefore needs an authenticated session.
func IsPrivateTopic(topic string) bool {
	switch topic {
	case TopicPosition, TopicExecution, TopicOrder, TopicWallet, TopicFastExec:
		return true
	}
	return strings.HasPrefix(topic, TopicPosition+".") ||
		strings.HasPrefix(topic, TopicExecution+".") ||
		strings.HasPrefix(topic, TopicOrder+".")
}
