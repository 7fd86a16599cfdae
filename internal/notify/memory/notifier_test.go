package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

func TestNotifierRecordsAndFails(t *testing.T) {
	t.Parallel()

	n := New()
	require.NoError(t, n.Send(context.Background(), pricing.Notification{AlertID: "a1"}))

	boom := errors.New("boom")
	n.FailWith(boom)
	require.ErrorIs(t, n.Send(context.Background(), pricing.Notification{AlertID: "a2"}), boom)

	sent := n.Sent()
	require.Len(t, sent, 1)
	sent[0].AlertID = "modified"
	require.Equal(t, "a1", n.Sent()[0].AlertID, "Sent returns a copy")
}
