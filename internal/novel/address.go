// Package novel turns user supplied novel addresses into ordered chapter lists.
package novel

import (
	"net/url"
	"strings"

	"novel-translate-service/internal/entity"
)

// ParseAddresses splits input on runs of whitespace and validates every token.
// One bad token rejects the whole input. Order and duplicates are preserved.
func ParseAddresses(input string) ([]string, error) {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return nil, &entity.ValidationError{Field: "url_string", Message: "at least one URL is required"}
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !isWellFormedURL(tok) {
			return nil, entity.InvalidAddressError(tok)
		}
		out = append(out, tok)
	}
	return out, nil
}

func isWellFormedURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return false
	}
	// mailto:, urn: and friends carry an opaque part instead of a host
	return u.Host != "" || u.Opaque != ""
}
