package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

var errStateNotFound = errors.New("embedded state not found")

// assignedState finds the first script assigning a global with marker and decodes its payload.
func assignedState(doc *goquery.Document, marker string) (any, error) {
	var (
		state   any
		lastErr = errStateNotFound
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := s.Text()
		idx := strings.Index(content, marker)
		if idx < 0 {
			return true
		}
		payload := strings.TrimSpace(content[idx+len(marker):])
		payload = strings.TrimSuffix(payload, ";")
		v, err := decodeState(payload)
		if err != nil {
			lastErr = err
			return true
		}
		state = v
		return false
	})
	if state == nil {
		return nil, lastErr
	}
	return state, nil
}

// scriptState decodes the JSON body of the script matching css.
func scriptState(doc *goquery.Document, css string) (any, error) {
	script := doc.Find(css).First()
	if script.Length() == 0 {
		return nil, errStateNotFound
	}
	return decodeState(strings.TrimSpace(script.Text()))
}

// decodeState parses strict JSON first, then falls back to JSON5 for JS object literals.
// A payload followed by trailing statements is retried up to its last closing brace.
func decodeState(payload string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err == nil {
		return v, nil
	}
	if err := json5.Unmarshal([]byte(payload), &v); err == nil {
		return v, nil
	}
	if end := strings.LastIndex(payload, "}"); end > 0 && end < len(payload)-1 {
		return decodeState(payload[:end+1])
	}
	return nil, fmt.Errorf("decode embedded state: %w", errStateNotFound)
}

// dig walks maps by string key and slices by int index.
func dig(v any, path ...any) (any, bool) {
	cur := v
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[key]; !ok {
				return nil, false
			}
		case int:
			list, ok := cur.([]any)
			if !ok || key < 0 || key >= len(list) {
				return nil, false
			}
			cur = list[key]
		default:
			return nil, false
		}
	}
	return cur, true
}

// digString returns the value at path when it is a non-empty string.
func digString(v any, path ...any) string {
	found, ok := dig(v, path...)
	if !ok {
		return ""
	}
	s, _ := found.(string)
	return s
}

// digList returns the slice at path.
func digList(v any, path ...any) ([]any, bool) {
	found, ok := dig(v, path...)
	if !ok {
		return nil, false
	}
	list, ok := found.([]any)
	return list, ok
}

// priceValue returns the value at path when it looks like a price, or nil.
func priceValue(v any, path ...any) any {
	found, ok := dig(v, path...)
	if !ok || found == nil {
		return nil
	}
	switch p := found.(type) {
	case string:
		if p == "" {
			return nil
		}
	case float64:
		if p == 0 {
			return nil
		}
	}
	return found
}
