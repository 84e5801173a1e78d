// Package rest implements the signed HTTP client for the Bybit v5 API. It
// owns the request/response lifecycle: timestamping, signing, header
// assembly, envelope decoding and error classification. The client never
// retries on its own; callers decide retry policy from the error type.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"bybitconn/config"
	"bybitconn/logger"
	"bybitconn/models"
	"bybitconn/sign"
)

// Client is a signed REST client. It is safe for concurrent use; the only
// shared state is the http.Client connection pool and the rate limiter.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int64
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// New builds a client from the connector configuration. Credentials may be
// absent; unauthenticated market endpoints keep working without them.
func New(cfg *config.Config) *Client {
	c := &Client{
		baseURL:    cfg.Rest.BaseURL,
		apiKey:     cfg.Credentials.APIKey,
		apiSecret:  cfg.Credentials.APISecret,
		recvWindow: cfg.Rest.RecvWindow,
		httpClient: &http.Client{Timeout: cfg.Rest.Timeout.Std()},
		log:        logger.GetLogger(),
	}
	if rps := cfg.Rest.RateLimit.RequestsPerSecond; rps > 0 {
		burst := cfg.Rest.RateLimit.BurstSize
		if burst <= 0 {
			burst = rps
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// Get issues a GET request. Params become the (canonically ordered) query
// string; when auth is set the same string is covered by the signature.
func (c *Client) Get(ctx context.Context, path string, params map[string]string, auth bool, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, auth, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, auth bool, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, auth, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}, auth bool, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, auth, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, params map[string]string, auth bool, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, params, nil, auth, out)
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body interface{}, auth bool, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &models.TransportError{Op: "rate limit wait", Err: err}
		}
	}

	query := sign.Canonical(params)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &models.ProtocolError{Reason: "failed to encode request body", Err: err}
		}
	}

	urlStr := c.baseURL + path
	if query != "" {
		urlStr += "?" + query
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, bodyReader)
	if err != nil {
		return &models.ProtocolError{Reason: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bybitconn")

	if auth {
		// The signature covers exactly the bytes the exchange will see:
		// the canonical query for GET, the raw JSON body otherwise.
		signed := query
		if payload != nil {
			signed = string(payload)
		}
		timestamp := time.Now().UnixMilli()
		signature, err := sign.Request(c.apiSecret, c.apiKey, timestamp, c.recvWindow, signed)
		if err != nil {
			return &models.AuthError{Message: err.Error()}
		}
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
		req.Header.Set("X-BAPI-RECV-WINDOW", strconv.FormatInt(c.recvWindow, 10))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.IncrementRestCall(true)
		return &models.TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.IncrementRestCall(true)
		return &models.TransportError{Op: fmt.Sprintf("read %s response", path), Err: err}
	}

	reportRateLimitStatus(c.log, resp.Header, path)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logger.IncrementRestCall(true)
		return &models.AuthError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode >= 500:
		logger.IncrementRestCall(true)
		return &models.TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: fmt.Errorf("server status %s", resp.Status)}
	}

	var envelope models.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.IncrementRestCall(true)
		return &models.ProtocolError{Reason: fmt.Sprintf("malformed envelope from %s", path), Err: err}
	}

	if envelope.RetCode != 0 {
		logger.IncrementRestCall(true)
		err := models.ClassifyRetCode(envelope.RetCode, envelope.RetMsg)
		c.log.WithComponent("rest_client").WithFields(logger.Fields{
			"path":     path,
			"ret_code": envelope.RetCode,
			"ret_msg":  envelope.RetMsg,
		}).Warn("request rejected by exchange")
		return err
	}

	logger.IncrementRestCall(false)
	c.log.WithComponent("rest_client").WithFields(logger.Fields{
		"method":      method,
		"path":        path,
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Debug("request completed")

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &models.ProtocolError{Reason: fmt.Sprintf("malformed result from %s", path), Err: err}
		}
	}
	return nil
}
