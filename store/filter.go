package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Criteria maps field name ("number", "first", "last") to a value
// the field must be equal to
type Criteria map[string]string

var ErrInvalidCriteria = errors.New("invalid criteria")

// Filter is normalized Criteria
type Filter struct {
	HasNumber bool
	Number    int
	// empty means: don't filter on this field
	First string
	Last  string
}

// NewFilter normalizes criteria: empty values are dropped, number
// is converted to int. Unknown fields are an error.
func NewFilter(c Criteria) (*Filter, error) {
	f := &Filter{}
	for k, v := range c {
		switch k {
		case "number":
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: number '%s' is not an integer", ErrInvalidCriteria, v)
			}
			f.HasNumber = true
			f.Number = n
		case "first":
			f.First = v
		case "last":
			f.Last = v
		default:
			return nil, fmt.Errorf("%w: unknown field '%s'", ErrInvalidCriteria, k)
		}
	}
	return f, nil
}

// Match returns true if r matches all fields of the filter exactly
func (f *Filter) Match(r *Record) bool {
	if f.HasNumber && f.Number != r.Number {
		return false
	}
	if f.First != "" && f.First != r.First {
		return false
	}
	if f.Last != "" && f.Last != r.Last {
		return false
	}
	return true
}
