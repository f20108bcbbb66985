// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/litfinder/pkg/types"
)

// authorFromDisplayName parses a given-names-first name such as
// "John Paul Smith" into last name "Smith" and initials "J.P.".
// Single-token names become the last name with no initials.
func authorFromDisplayName(name string) types.Author {
	name = strings.TrimSpace(name)
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return types.Author{Name: name, LastName: name}
	}
	return types.Author{
		Name:     name,
		LastName: parts[len(parts)-1],
		Initials: initialsOf(parts[:len(parts)-1]),
	}
}

// authorFromCreator parses a family-name-first creator such as
// "Иванов И.О." or "Иванов Иван Олегович". Given initials are kept as
// written; full given names are reduced to initials.
func authorFromCreator(creator string) types.Author {
	creator = strings.TrimSpace(creator)
	parts := strings.Fields(creator)
	if len(parts) == 0 {
		return types.Author{}
	}
	a := types.Author{Name: creator, LastName: parts[0]}
	if len(parts) == 1 {
		return a
	}
	if allInitials(parts[1:]) {
		a.Initials = strings.Join(parts[1:], "")
	} else {
		a.Initials = initialsOf(parts[1:])
	}
	return a
}

// initialsOf returns the upper-cased first letters of parts, each followed
// by a period.
func initialsOf(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		r, _ := utf8.DecodeRuneInString(p)
		if r == utf8.RuneError {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		b.WriteByte('.')
	}
	return b.String()
}

// allInitials reports whether every part is already an initial group such
// as "И." or "И.О.".
func allInitials(parts []string) bool {
	for _, p := range parts {
		if utf8.RuneCountInString(p) > 4 || !strings.Contains(p, ".") {
			return false
		}
	}
	return true
}
