package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JakeFAU/realtime-price-tracker/internal/pricing"
)

// Default returns every adapter in the order a tracking cycle runs them.
func Default(loader pricing.PageLoader, opts ...Option) []pricing.Provider {
	return []pricing.Provider{
		NewAmazon(loader, opts...),
		NewFlipkart(loader, opts...),
		NewMyntra(loader, opts...),
		NewAjio(loader, opts...),
		NewMeesho(loader, opts...),
	}
}

// Select keeps the providers named in names, preserving registry order.
// An empty names list keeps everything.
func Select(all []pricing.Provider, names []string) ([]pricing.Provider, error) {
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []pricing.Provider
	for _, p := range all {
		key := strings.ToLower(p.Name())
		if wanted[key] {
			out = append(out, p)
			delete(wanted, key)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for n := range wanted {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown providers: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
