// Package match scores how relevant a listing title is to a search query.
package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// AccessoryScore is returned when the title names an accessory the query does not ask for.
	AccessoryScore = 0.2

	tokenWeight    = 0.7
	sequenceWeight = 0.3
)

// accessoryKeywords are matched as whole tokens; multi-word entries as consecutive tokens.
var accessoryKeywords = [][]string{
	{"case"},
	{"cover"},
	{"sleeve"},
	{"guard"},
	{"screen", "protector"},
	{"skin"},
	{"pouch"},
	{"bag"},
}

// Score returns a relevance score in [0, 1] for title against query.
func Score(query, title string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	title = strings.ToLower(strings.TrimSpace(title))
	if query == "" || title == "" {
		return 0
	}

	queryTokens := strings.Fields(query)
	titleTokens := strings.Fields(title)
	if accessoryMismatch(queryTokens, titleTokens) {
		return AccessoryScore
	}

	if strings.Contains(title, query) {
		return 1
	}

	seq := SequenceRatio(query, title)
	significant := 0
	matched := 0
	for _, tok := range queryTokens {
		if len([]rune(tok)) <= 1 {
			continue
		}
		significant++
		if strings.Contains(title, tok) {
			matched++
		}
	}
	if significant == 0 {
		return clamp(seq)
	}
	overlap := float64(matched) / float64(significant)
	return clamp(tokenWeight*overlap + sequenceWeight*seq)
}

// SequenceRatio is the Ratcliff/Obershelp similarity of a and b over characters.
func SequenceRatio(a, b string) float64 {
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

func accessoryMismatch(queryTokens, titleTokens []string) bool {
	for _, kw := range accessoryKeywords {
		if containsRun(titleTokens, kw) && !containsRun(queryTokens, kw) {
			return true
		}
	}
	return false
}

// containsRun reports whether run appears as consecutive tokens.
func containsRun(tokens, run []string) bool {
	for i := 0; i+len(run) <= len(tokens); i++ {
		hit := true
		for j, want := range run {
			if tokens[i+j] != want {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
