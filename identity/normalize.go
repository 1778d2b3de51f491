package identity

import (
	"regexp"
	"strings"
)

var externalIDRegex = regexp.MustCompile(`-(\d+)$`)

// Normalize turns a listing URL into the key used to match scraped cards
// against stored items. Everything from the first "?" is dropped, then a
// single trailing "/". Case, scheme and host are kept. Malformed input
// yields a possibly empty key, which callers treat as unmatched.
func Normalize(rawURL string) string {
	key := rawURL
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	return strings.TrimSuffix(key, "/")
}

// ExternalID extracts the numeric lot id that ends a listing slug,
// e.g. ".../apartamento-em-sao-paulo-12345" -> "12345".
func ExternalID(rawURL string) string {
	key := Normalize(rawURL)
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		key = key[i+1:]
	}
	if m := externalIDRegex.FindStringSubmatch(key); m != nil {
		return m[1]
	}
	return ""
}
