// Package sign implements Bybit v5 request signing: deterministic parameter
// canonicalization plus HMAC-SHA256 over the documented payload layouts. All
// functions are pure; identical inputs always produce identical signatures.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
)

// ErrEmptySecret is returned when no signing secret is configured. A missing
// key never becomes valid, so callers should treat this as fatal.
var ErrEmptySecret = errors.New("signing secret is empty")

// Canonical serialises params into the stable query-string form used for
// both the request URL and the signature payload: keys sorted, values URL
// encoded, pairs joined with '&'. The exchange rejects requests whose signed
// string differs from the sent query by as much as key order.
func Canonical(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// Request computes the REST signature over
// timestamp + apiKey + recvWindow + payload, where payload is the canonical
// query for GET requests and the raw JSON body for POST requests.
func Request(secret, apiKey string, timestamp, recvWindow int64, payload string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	message := fmt.Sprintf("%d%s%d%s", timestamp, apiKey, recvWindow, payload)
	return hmacHex(secret, message), nil
}

// WsAuth computes the websocket auth signature over "GET/realtime" followed
// by the expiry timestamp in milliseconds.
func WsAuth(secret string, expires int64) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	return hmacHex(secret, fmt.Sprintf("GET/realtime%d", expires)), nil
}

func hmacHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
