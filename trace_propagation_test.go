package tracker

import (
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TestHTTPClientUsesOtelTransport verifies the tracker's HTTP client
// is instrumented with otelhttp.Transport for trace propagation
func TestHTTPClientUsesOtelTransport(t *testing.T) {
	tr := New(DefaultConfig(), nil, nil, nil)

	// Verify the HTTP client's transport is wrapped with otelhttp
	_, ok := tr.httpClient.Transport.(*otelhttp.Transport)
	if !ok {
		t.Error("❌ Tracker HTTP client does not use otelhttp.Transport for trace propagation")
		t.Error("   This will cause traces to 'go dead' on title-fetch requests")
	} else {
		t.Log("✅ Tracker HTTP client correctly uses otelhttp.Transport")
		t.Log("   Trace context will be propagated when fetching page titles")
	}
}
