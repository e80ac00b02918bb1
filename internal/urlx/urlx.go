// Package urlx holds the URL and domain helpers shared by the brand
// detector, the safety validator and the scorer.
package urlx

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidURL is returned when a string is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// Parse parses an absolute http or https URL and lower-cases its host.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return nil, ErrInvalidURL
	}
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

// Host returns the lower-cased host of raw, without port, or "" if raw does not parse.
func Host(raw string) string {
	u, err := Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// RegistrableDomain returns the eTLD+1 of host ("www.amazon.co.uk" -> "amazon.co.uk").
// Hosts that are themselves public suffixes are returned unchanged.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// DomainOf is RegistrableDomain(Host(raw)).
func DomainOf(raw string) string {
	h := Host(raw)
	if h == "" {
		return ""
	}
	return RegistrableDomain(h)
}

// Label returns the registrable label without its suffix ("amazon.co.uk" -> "amazon").
func Label(domain string) string {
	domain = RegistrableDomain(domain)
	suffix, _ := publicsuffix.PublicSuffix(domain)
	label := strings.TrimSuffix(domain, "."+suffix)
	if i := strings.LastIndex(label, "."); i >= 0 {
		label = label[i+1:]
	}
	return label
}

// SubdomainDepth counts the labels in host in front of its registrable domain.
func SubdomainDepth(host string) int {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	reg := RegistrableDomain(host)
	if host == reg {
		return 0
	}
	prefix := strings.TrimSuffix(host, "."+reg)
	return strings.Count(prefix, ".") + 1
}

// Subdomains returns the labels in front of the registrable domain, outermost first.
func Subdomains(host string) []string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	reg := RegistrableDomain(host)
	if host == reg {
		return nil
	}
	return strings.Split(strings.TrimSuffix(host, "."+reg), ".")
}

// MatchesDomain reports whether host equals domain or is one of its subdomains.
func MatchesDomain(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// IsHomepage reports whether u points at a site root, optionally under a
// short locale prefix such as "/fr" or "/en-us".
func IsHomepage(u *url.URL) bool {
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return u.RawQuery == ""
	}
	if strings.Contains(p, "/") {
		return false
	}
	return len(p) == 2 || (len(p) == 5 && p[2] == '-')
}
