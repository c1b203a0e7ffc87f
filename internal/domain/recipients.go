package domain

import "strings"

// RecipientSet is a de-duplicated set of structurally valid addresses.
// Insertion order is kept so messages list recipients deterministically.
// The zero value is the empty set, meaning "no delivery this run".
type RecipientSet struct {
	addrs []string
}

// NewRecipientSet keeps the valid addresses among candidates, trimmed and
// de-duplicated. Invalid candidates are dropped silently.
func NewRecipientSet(candidates ...string) RecipientSet {
	seen := make(map[string]struct{}, len(candidates))
	var addrs []string
	for _, c := range candidates {
		addr := strings.TrimSpace(c)
		if !ValidAddress(addr) {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return RecipientSet{addrs: addrs}
}

// Addresses returns a copy of the addresses.
func (s RecipientSet) Addresses() []string {
	return append([]string(nil), s.addrs...)
}

// Len returns the number of addresses.
func (s RecipientSet) Len() int { return len(s.addrs) }

// Empty reports whether there is nobody to deliver to.
func (s RecipientSet) Empty() bool { return len(s.addrs) == 0 }

// ValidAddress reports whether addr has exactly one '@', a non-empty local
// part, and at least one '.' in the domain part.
func ValidAddress(addr string) bool {
	if strings.Count(addr, "@") != 1 {
		return false
	}
	at := strings.IndexByte(addr, '@')
	local, domain := addr[:at], addr[at+1:]
	if local == "" || strings.ContainsAny(addr, " \t\r\n") {
		return false
	}
	return strings.Contains(domain, ".")
}
