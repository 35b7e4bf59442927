package observability

import (
	"strings"
	"testing"
)

func TestSanitizers(t *testing.T) {
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("empty route: got %q", got)
	}
	if got := SanitizeRoute("/api/orders/7\r\nInjected: yes"); got != "/api/orders/7Injected: yes" {
		t.Fatalf("control characters kept: %q", got)
	}
	if got := SanitizeRoute(strings.Repeat("é", 300)); len([]rune(got)) != routeLimit {
		t.Fatalf("expected %d runes, got %d", routeLimit, len([]rune(got)))
	}
	if got := SanitizeMethod("get\x00"); got != "GET" {
		t.Fatalf("method: got %q", got)
	}
	if got := SanitizeUserAgent("  curl/8.0\t "); got != "curl/8.0" {
		t.Fatalf("user agent: got %q", got)
	}
}
