package observability

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for request and query values copied into logs and span attributes.
const (
	routeLimit     = 180
	methodLimit    = 10
	userAgentLimit = 200
	sqlLimit       = 2048
)

// clip drops control characters, including line breaks, and truncates to limit runes.
func clip(value string, limit int) string {
	var b strings.Builder
	b.Grow(min(len(value), limit*utf8.UTFMax))
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a request path or chi route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, routeLimit)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return strings.ToUpper(clip(method, methodLimit))
}

// SanitizeUserAgent cleans the caller's User-Agent header.
func SanitizeUserAgent(agent string) string {
	return clip(strings.TrimSpace(agent), userAgentLimit)
}
