package model

import "strings"

// TLE is a two-line element set plus the object name from the catalog
// header line. It identifies one orbiting object at its reference epoch
// and is never mutated after construction.
type TLE struct {
	Name  string `json:"name"`
	Line1 string `json:"tle1"`
	Line2 string `json:"tle2"`
}

// HasValidFormat reports whether both element lines carry their required
// prefixes ("1 " and "2 "). It is a cheap structural check; full parsing
// is left to the propagation layer.
func (t TLE) HasValidFormat() bool {
	return strings.HasPrefix(t.Line1, "1 ") && strings.HasPrefix(t.Line2, "2 ")
}
