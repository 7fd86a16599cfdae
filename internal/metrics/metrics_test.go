package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if providerResultsTotal == nil || fetchAttemptsTotal == nil ||
		httpRequestsTotal == nil || cycleDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveProviderResult(t *testing.T) {
	ObserveProviderResult("Amazon", "found")
	ObserveProviderResult("Amazon", "found")
	if val := testutil.ToFloat64(providerResultsTotal.WithLabelValues("Amazon", "found")); val != 2 {
		t.Errorf("Expected 2 found results for Amazon, got %f", val)
	}
}

func TestObserveFetchSanitizesSite(t *testing.T) {
	ObserveFetch("https://WWW.Flipkart.com/search?q=x", "ok", 2048)
	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("www.flipkart.com", "ok")); val != 1 {
		t.Errorf("Expected one fetch attempt for www.flipkart.com, got %f", val)
	}
	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("www.flipkart.com")); val != 2048 {
		t.Errorf("Expected 2048 bytes for www.flipkart.com, got %f", val)
	}
}

func TestObserveRejected(t *testing.T) {
	ObserveRejected("above_band")
	if val := testutil.ToFloat64(offersRejectedTotal.WithLabelValues("above_band")); val != 1 {
		t.Errorf("Expected one above_band rejection, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
