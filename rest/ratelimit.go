package rest

import (
	"net/http"
	"strconv"

	"bybitconn/logger"
)

// reportRateLimitStatus parses the X-Bapi-Limit-* headers the exchange
// attaches to authenticated responses and emits gauge metrics so operators
// can watch remaining quota per endpoint.
func reportRateLimitStatus(log *logger.Log, header http.Header, path string) {
	remaining, okRemaining := parseRateHeader(header, "X-Bapi-Limit-Status")
	limit, okLimit := parseRateHeader(header, "X-Bapi-Limit")
	if !okRemaining && !okLimit {
		return
	}

	fields := logger.Fields{"path": path}
	if okRemaining {
		log.WithComponent("rest_client").LogMetric("rest_client", "rate_limit_remaining", remaining, "gauge", fields)
	}
	if okLimit && okRemaining {
		used := limit - remaining
		if used < 0 {
			used = 0
		}
		log.WithComponent("rest_client").LogMetric("rest_client", "rate_limit_used", used, "gauge", fields)
	}
}

func parseRateHeader(header http.Header, name string) (int64, bool) {
	raw := header.Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
