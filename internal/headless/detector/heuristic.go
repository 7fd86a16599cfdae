// Package detector applies the validity gates that decide whether a fetched page is usable.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

const (
	defaultMinBodyBytes = 1000
	defaultProbeBytes   = 500
)

// Heuristic implements the rule-based block and size gates.
type Heuristic struct {
	// MinBodyBytes is the smallest body treated as a real page.
	MinBodyBytes int
	// ProbeBytes bounds how much of the body is searched for bot-wall text.
	ProbeBytes int
}

// NewHeuristic creates a new detector. Zero values select the defaults.
func NewHeuristic(minBodyBytes, probeBytes int) *Heuristic {
	if minBodyBytes == 0 {
		minBodyBytes = defaultMinBodyBytes
	}
	if probeBytes == 0 {
		probeBytes = defaultProbeBytes
	}
	return &Heuristic{MinBodyBytes: minBodyBytes, ProbeBytes: probeBytes}
}

var botWallMarkers = [][]byte{
	[]byte("robot"),
}

// Inspect returns the failure reason for resp, or false if the page passes every gate.
func (h *Heuristic) Inspect(resp pricing.FetchResponse) (pricing.FetchReason, bool) {
	if resp.StatusCode == http.StatusForbidden {
		return pricing.ReasonBlocked, true
	}
	if strings.Contains(strings.ToLower(resp.FinalURL), "captcha") {
		return pricing.ReasonBlocked, true
	}
	probe := resp.Body
	if len(probe) > h.ProbeBytes {
		probe = probe[:h.ProbeBytes]
	}
	probe = bytes.ToLower(probe)
	for _, marker := range botWallMarkers {
		if bytes.Contains(probe, marker) {
			return pricing.ReasonBlocked, true
		}
	}
	if len(resp.Body) < h.MinBodyBytes {
		return pricing.ReasonTooSmall, true
	}
	return "", false
}

// Retryable reports whether a status code is transient and worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// ShouldRender reports whether a failed or thin plain fetch should be retried in a browser.
func ShouldRender(resp pricing.FetchResponse, fetchErr error, minBodyBytes int) bool {
	if fetchErr != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return len(resp.Body) < minBodyBytes
}
