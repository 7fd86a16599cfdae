package detector

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

func bigBody(prefix string) []byte {
	return []byte(prefix + strings.Repeat("<p>item</p>", 200))
}

func TestHeuristic_Inspect_Passes(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0, 0)
	reason, failed := h.Inspect(pricing.FetchResponse{
		StatusCode: 200,
		FinalURL:   "https://www.amazon.in/s?k=macbook",
		Body:       bigBody("<html>"),
	})
	require.False(t, failed)
	require.Empty(t, reason)
}

func TestHeuristic_Inspect_CaptchaURL(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0, 0)
	reason, failed := h.Inspect(pricing.FetchResponse{
		StatusCode: 200,
		FinalURL:   "https://www.amazon.in/errors/validateCaptcha",
		Body:       bigBody("<html>"),
	})
	require.True(t, failed)
	require.Equal(t, pricing.ReasonBlocked, reason)
}

func TestHeuristic_Inspect_RobotText(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0, 0)
	reason, failed := h.Inspect(pricing.FetchResponse{
		StatusCode: 200,
		Body:       bigBody("<html><p>Are you a Robot?</p>"),
	})
	require.True(t, failed)
	require.Equal(t, pricing.ReasonBlocked, reason)
}

func TestHeuristic_Inspect_RobotTextBeyondProbeIgnored(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0, 0)
	body := append(bigBody("<html>"), []byte("robots.txt")...)
	_, failed := h.Inspect(pricing.FetchResponse{StatusCode: 200, Body: body})
	require.False(t, failed)
}

func TestHeuristic_Inspect_Forbidden(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0, 0)
	reason, failed := h.Inspect(pricing.FetchResponse{StatusCode: 403, Body: bigBody("")})
	require.True(t, failed)
	require.Equal(t, pricing.ReasonBlocked, reason)
}

func TestHeuristic_Inspect_TooSmall(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, 0)
	reason, failed := h.Inspect(pricing.FetchResponse{StatusCode: 200, Body: []byte("<html></html>")})
	require.True(t, failed)
	require.Equal(t, pricing.ReasonTooSmall, reason)
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, Retryable(429))
	require.True(t, Retryable(502))
	require.True(t, Retryable(503))
	require.False(t, Retryable(404))
	require.False(t, Retryable(500))
}

func TestShouldRender(t *testing.T) {
	t.Parallel()

	require.True(t, ShouldRender(pricing.FetchResponse{}, errors.New("boom"), 1000))
	require.True(t, ShouldRender(pricing.FetchResponse{StatusCode: 403, Body: bigBody("")}, nil, 1000))
	require.True(t, ShouldRender(pricing.FetchResponse{StatusCode: 200, Body: []byte("tiny")}, nil, 1000))
	require.False(t, ShouldRender(pricing.FetchResponse{StatusCode: 200, Body: bigBody("")}, nil, 1000))
}
