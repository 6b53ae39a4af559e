// Package senders normalises sender addresses and matches them against
// address and domain lists.
package senders

import (
	"net/mail"
	"strings"
)

// Address is a normalised sender address
type Address struct {
	Email  string
	Domain string
}

// Parse extracts the bare, lower-cased address and its domain from a From
// value. Display-name forms such as `"Ann" <ann@example.com>` are accepted.
func Parse(from string) Address {
	from = strings.TrimSpace(from)
	if from == "" {
		return Address{}
	}

	email := from
	if addr, err := mail.ParseAddress(from); err == nil {
		email = addr.Address
	}
	email = strings.ToLower(strings.Trim(email, " <>"))

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{Email: email}
	}

	return Address{Email: email, Domain: parts[1]}
}

// NormalizeDomain lower-cases a rule domain and strips a leading "@"
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
}

// DomainMatches reports whether domain equals rule or is a subdomain of it
func DomainMatches(domain, rule string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	r := NormalizeDomain(rule)
	if d == "" || r == "" {
		return false
	}
	return d == r || strings.HasSuffix(d, "."+r)
}

// List is a set of sender emails and domains
type List struct {
	emails  map[string]struct{}
	domains []string
}

// NewList builds a list from raw emails and domains, normalising both
func NewList(emails, domains []string) *List {
	l := &List{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			l.emails[e] = struct{}{}
		}
	}
	for _, d := range domains {
		if d = NormalizeDomain(d); d != "" {
			l.domains = append(l.domains, d)
		}
	}
	return l
}

// Empty reports whether the list holds no entries
func (l *List) Empty() bool {
	return len(l.emails) == 0 && len(l.domains) == 0
}

// ContainsEmail reports whether the address is listed
func (l *List) ContainsEmail(a Address) bool {
	if a.Email == "" {
		return false
	}
	_, ok := l.emails[a.Email]
	return ok
}

// ContainsDomain reports whether the address domain matches a listed domain
func (l *List) ContainsDomain(a Address) bool {
	if a.Domain == "" {
		return false
	}
	for _, d := range l.domains {
		if DomainMatches(a.Domain, d) {
			return true
		}
	}
	return false
}

// Contains reports whether the address matches by email or domain
func (l *List) Contains(a Address) bool {
	return l.ContainsEmail(a) || l.ContainsDomain(a)
}
