package provider

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rule extracts one field from a product container; "" means the rule did not apply.
type rule func(*goquery.Selection) string

// chain tries each rule in order; the first non-empty result wins.
type chain []rule

func (c chain) first(sel *goquery.Selection) string {
	for _, r := range c {
		if v := r(sel); v != "" {
			return v
		}
	}
	return ""
}

// text returns the trimmed text of the first element matching css.
func text(css string) rule {
	return func(sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Find(css).First().Text())
	}
}

// attr returns an attribute of the first element matching css that carries it.
func attr(css, name string) rule {
	return func(sel *goquery.Selection) string {
		v, _ := sel.Find(css).FilterFunction(func(_ int, s *goquery.Selection) bool {
			_, ok := s.Attr(name)
			return ok
		}).First().Attr(name)
		return strings.TrimSpace(v)
	}
}

// price wraps a rule so it only succeeds when its text holds a number.
func price(r rule) rule {
	return func(sel *goquery.Selection) string {
		return ParsePrice(r(sel))
	}
}

// childPrice scans the descendants of the first css match for a parseable price.
func childPrice(css, child string) rule {
	return func(sel *goquery.Selection) string {
		var found string
		sel.Find(css).First().Find(child).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = ParsePrice(strings.TrimSpace(s.Text()))
			return found == ""
		})
		return found
	}
}

// pattern runs re over the container text and returns the whole match.
func pattern(re *regexp.Regexp) rule {
	return func(sel *goquery.Selection) string {
		return re.FindString(sel.Text())
	}
}

// containerStrategy locates candidate product containers in a results page.
type containerStrategy struct {
	name string
	find func(*goquery.Document) *goquery.Selection
}

// firstContainers returns the containers from the first strategy that matches anything.
func firstContainers(doc *goquery.Document, strategies []containerStrategy) (*goquery.Selection, string) {
	for _, s := range strategies {
		if found := s.find(doc); found != nil && found.Length() > 0 {
			return found, s.name
		}
	}
	return nil, ""
}

// absoluteURL resolves an href against origin, keeping only the part before cut.
// Hrefs that are neither root-relative nor http(s) yield "".
func absoluteURL(origin, href, cut string) string {
	href = strings.TrimSpace(href)
	if cut != "" {
		href, _, _ = strings.Cut(href, cut)
	}
	switch {
	case strings.HasPrefix(href, "/"):
		return origin + href
	case strings.HasPrefix(href, "http"):
		return href
	}
	return ""
}
