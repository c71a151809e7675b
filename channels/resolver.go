package channels

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize folds case, drops all whitespace and composes Hangul so that
// sheet text typed on different systems compares equal.
func normalize(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return ""
	}
	return norm.NFC.String(cases.Fold().String(s))
}

// ResolveAlias maps any known channel name to its canonical name. On a miss
// the input is returned unmodified with ok=false; callers pass it through.
func (d *Directory) ResolveAlias(raw string) (string, bool) {
	if name, ok := d.aliases[normalize(raw)]; ok {
		return name, true
	}
	return raw, false
}

// Canonical is ResolveAlias without the match flag
func (d *Directory) Canonical(raw string) string {
	name, _ := d.ResolveAlias(raw)
	return name
}
