package match

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreEmptyInputs(t *testing.T) {
	t.Parallel()

	require.Zero(t, Score("", "Apple MacBook Air"))
	require.Zero(t, Score("macbook", "   "))
}

func TestScoreAccessoryPenalty(t *testing.T) {
	t.Parallel()

	cases := []struct{ query, title string }{
		{"MacBook Air M3", "MacBook Sleeve Case 13-inch"},
		{"iphone 15", "iPhone 15 Back Cover Transparent"},
		{"iphone 15", "Spigen screen protector for iPhone 15"},
		{"macbook air m3", "macbook air m3 laptop bag"},
	}
	for _, c := range cases {
		require.Equal(t, AccessoryScore, Score(c.query, c.title), c.title)
	}
}

func TestScoreAccessoryNamedInQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, Score("iphone 15 case", "Spigen iPhone 15 Case Black"))
	require.Equal(t, 1.0, Score("screen protector", "Tempered Glass Screen Protector for iPad"))
}

func TestScoreAccessoryNeedsWholeTokens(t *testing.T) {
	t.Parallel()

	// "bagpack" and "showcase" are not the keyword tokens "bag" and "case".
	require.Equal(t, 1.0, Score("wildcraft bagpack", "Wildcraft Bagpack 45L"))
	require.Greater(t, Score("samsung galaxy s24", "Samsung Galaxy S24 Showcase Edition"), AccessoryScore)
	// A lone "screen" is not a screen protector.
	require.Equal(t, 1.0, Score("lg monitor", "LG Monitor 27 inch Screen"))
}

func TestScoreSubstring(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, Score("MacBook Air", "Apple MacBook Air Laptop with M3 chip"))
	require.Equal(t, 1.0, Score("  iPhone 15 ", "Apple iPhone 15 (Black, 128 GB)"))
}

func TestScoreWeightedCombination(t *testing.T) {
	t.Parallel()

	query, title := "macbook air m3", "apple macbook air laptop with m3 chip"
	seq := SequenceRatio(query, title)
	require.InDelta(t, 0.7*1.0+0.3*seq, Score("MacBook Air M3", "Apple MacBook Air Laptop with M3 chip"), 1e-9)
	require.GreaterOrEqual(t, Score("MacBook Air M3", "Apple MacBook Air Laptop with M3 chip"), 0.7)

	partial := Score("sony wh-1000xm5 headphones", "Sony WH-1000XM4 Wireless")
	require.Greater(t, partial, 0.0)
	require.Less(t, partial, 0.7)
}

func TestScoreShortTokensFallBackToSequence(t *testing.T) {
	t.Parallel()

	require.InDelta(t, SequenceRatio("a b", "x y z"), Score("a b", "x y z"), 1e-9)
}

func TestSequenceRatioMatchesRatcliffObershelp(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, SequenceRatio("abc", "abc"))
	require.Zero(t, SequenceRatio("abc", "xyz"))
	// Python: SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
	require.InDelta(t, 0.75, SequenceRatio("abcd", "bcde"), 1e-9)
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"x", "y"},
		{"₹ price", "प्राइस"},
		{"macbook", "m"},
		{"a", "a long title with many words in it"},
		{"galaxy s24 ultra 512gb titanium", "galaxy"},
	}
	for _, p := range pairs {
		s := Score(p[0], p[1])
		require.False(t, math.IsNaN(s))
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
}
