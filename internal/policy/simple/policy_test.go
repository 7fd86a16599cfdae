package simple

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyRemembersBlockedHost(t *testing.T) {
	t.Parallel()

	p := New(time.Minute)
	require.True(t, p.AllowFetch("https://www.meesho.com/search?q=kurti"))

	p.MarkBlocked("https://www.meesho.com/search?q=kurti", time.Now())
	require.False(t, p.AllowFetch("https://WWW.meesho.com/other"))
	require.True(t, p.AllowFetch("https://www.ajio.com/api/search/v3"))

	p.Forget("https://www.meesho.com/")
	require.True(t, p.AllowFetch("https://www.meesho.com/search?q=kurti"))
}

func TestPolicyEntriesExpire(t *testing.T) {
	t.Parallel()

	p := New(20 * time.Millisecond)
	p.MarkBlocked("https://www.amazon.in/s?k=x", time.Now())
	require.False(t, p.AllowFetch("https://www.amazon.in/s?k=x"))
	require.Eventually(t, func() bool {
		return p.AllowFetch("https://www.amazon.in/s?k=x")
	}, time.Second, 10*time.Millisecond)
}

func TestPolicyDisabled(t *testing.T) {
	t.Parallel()

	var nilPolicy *Policy
	require.True(t, nilPolicy.AllowFetch("https://www.amazon.in/"))

	p := New(0)
	p.MarkBlocked("https://www.amazon.in/", time.Now())
	require.True(t, p.AllowFetch("https://www.amazon.in/"))
}
