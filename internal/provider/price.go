package provider

import (
	"regexp"
	"strings"
)

var (
	currencyStripper = strings.NewReplacer(",", "", "₹", "", "$", "", "€", "", "£", "")
	numberToken      = regexp.MustCompile(`\d+\.?\d*`)
	rupeeAmount      = regexp.MustCompile(`₹\s*([\d,]+)`)
)

// ParsePrice strips currency symbols and thousands separators and returns the first
// numeric token, or "" when there is none.
func ParsePrice(text string) string {
	if text == "" {
		return ""
	}
	return numberToken.FindString(currencyStripper.Replace(text))
}
