// Package simple contains the rule-based fetch escalation policy.
package simple

import (
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultSize = 256

// Policy remembers hosts that recently blocked plain fetches so they go straight to the browser.
type Policy struct {
	blocked *expirable.LRU[string, time.Time]
}

// New creates a new Policy. A zero ttl disables the memory.
func New(ttl time.Duration) *Policy {
	if ttl <= 0 {
		return &Policy{}
	}
	return &Policy{blocked: expirable.NewLRU[string, time.Time](defaultSize, nil, ttl)}
}

// AllowFetch reports whether a plain HTTP fetch is worth attempting for rawURL.
func (p *Policy) AllowFetch(rawURL string) bool {
	if p == nil || p.blocked == nil {
		return true
	}
	_, blocked := p.blocked.Peek(hostOf(rawURL))
	return !blocked
}

// MarkBlocked records that the host of rawURL refused a plain fetch.
func (p *Policy) MarkBlocked(rawURL string, at time.Time) {
	if p == nil || p.blocked == nil {
		return
	}
	p.blocked.Add(hostOf(rawURL), at)
}

// Forget clears the memory for the host of rawURL.
func (p *Policy) Forget(rawURL string) {
	if p == nil || p.blocked == nil {
		return
	}
	p.blocked.Remove(hostOf(rawURL))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
