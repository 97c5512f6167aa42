// Package form parses application/x-www-form-urlencoded data
// i.e. query strings and POST bodies.
package form

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrMalformed = errors.New("malformed form data")

// Parse parses "k1=v1&k2=v2". Keys and values are percent- and
// plus-decoded and trimmed. Empty pairs (e.g. from "a=1&&b=2") are skipped.
// A pair without '=' is an error. For repeated keys the last value wins.
// Empty s returns an empty map.
func Parse(s string) (map[string]string, error) {
	res := map[string]string{}
	for _, pair := range strings.Split(s, "&") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: no '=' in '%s'", ErrMalformed, pair)
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		res[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return res, nil
}
