package tenant

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const (
	minLabelLength = 3
	maxLabelLength = 63
	maxHostLength  = 253
)

// reservedLabels are platform-owned subdomains that never map to a tenant.
var reservedLabels = map[string]struct{}{
	"www":   {},
	"api":   {},
	"app":   {},
	"admin": {},
	"mail":  {},
}

// Key is the ephemeral tenant identifier extracted from one request.
// It is recomputed per request and never stored.
type Key struct {
	Pattern Pattern
	Value   string
}

// Classifier parses request hosts into addressing patterns and tenant keys.
type Classifier struct {
	baseDomain string
	devDefault string
}

// NewClassifier creates a classifier for the platform's reserved base
// domain (e.g. "oneclass.ac.zw"). devDefault, when non-empty, is the
// tenant key used for localhost requests that carry no override.
func NewClassifier(baseDomain, devDefault string) *Classifier {
	return &Classifier{
		baseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
		devDefault: devDefault,
	}
}

// NormalizeHost lowercases the host and strips any port. The normalized
// form is the resolution cache key.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

// Classify maps a request host to an addressing pattern and tenant key.
// override is the value of the development override header, consulted
// only for localhost and bare-IP hosts. Evaluation order:
//
//  1. exactly one label under the reserved base domain -> PatternSubdomain
//  2. well-formed foreign domain -> PatternCustomDomain
//  3. localhost or loopback -> PatternLocalhostDev (override or default key)
//  4. bare IP -> PatternIPAccess (override key required)
//
// Anything else fails with ErrInvalidHost. Malformed input is rejected,
// never sanitized, and classification never yields a fallback tenant.
func (c *Classifier) Classify(host, override string) (Key, error) {
	normalized := NormalizeHost(host)
	if normalized == "" || len(normalized) > maxHostLength {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	if normalized == "localhost" {
		return c.devKey(PatternLocalhostDev, override, host)
	}
	if addr, err := netip.ParseAddr(normalized); err == nil {
		if addr.IsLoopback() {
			return c.devKey(PatternLocalhostDev, override, host)
		}
		return c.devKey(PatternIPAccess, override, host)
	}

	if c.baseDomain != "" {
		if normalized == c.baseDomain {
			return Key{}, fmt.Errorf("%w: base domain carries no tenant label", ErrInvalidHost)
		}
		if label, ok := strings.CutSuffix(normalized, "."+c.baseDomain); ok {
			if err := validateLabel(label); err != nil {
				return Key{}, err
			}
			return Key{Pattern: PatternSubdomain, Value: label}, nil
		}
	}

	if err := validateDomain(normalized); err != nil {
		return Key{}, err
	}
	return Key{Pattern: PatternCustomDomain, Value: normalized}, nil
}

// devKey resolves the tenant key for localhost and IP access. Localhost
// may fall back to the configured development default; bare-IP access
// always requires an explicit override.
func (c *Classifier) devKey(pattern Pattern, override, host string) (Key, error) {
	value := strings.ToLower(strings.TrimSpace(override))
	if value == "" && pattern == PatternLocalhostDev {
		value = c.devDefault
	}
	if value == "" {
		return Key{}, fmt.Errorf("%w: %q requires a tenant override", ErrInvalidHost, host)
	}
	if err := validateLabel(value); err != nil {
		return Key{}, err
	}
	return Key{Pattern: pattern, Value: value}, nil
}

// validateLabel enforces subdomain label rules: 3-63 characters,
// lowercase alphanumerics and hyphens, no leading or trailing hyphen,
// not all digits, not a reserved platform word.
func validateLabel(label string) error {
	if len(label) < minLabelLength || len(label) > maxLabelLength {
		return fmt.Errorf("%w: label %q length out of range", ErrInvalidHost, label)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("%w: label %q has edge hyphen", ErrInvalidHost, label)
	}
	allDigits := true
	for i := 0; i < len(label); i++ {
		ch := label[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			allDigits = false
		case ch >= '0' && ch <= '9':
		case ch == '-':
			allDigits = false
		default:
			return fmt.Errorf("%w: label %q has disallowed character", ErrInvalidHost, label)
		}
	}
	if allDigits {
		return fmt.Errorf("%w: label %q is all digits", ErrInvalidHost, label)
	}
	if _, reserved := reservedLabels[label]; reserved {
		return fmt.Errorf("%w: label %q is reserved", ErrInvalidHost, label)
	}
	return nil
}

// validateDomain checks that a custom domain is a plausible FQDN:
// at least two non-empty DNS labels and a non-numeric TLD.
func validateDomain(domain string) error {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("%w: %q is not a domain", ErrInvalidHost, domain)
	}
	for _, l := range labels {
		if l == "" {
			return fmt.Errorf("%w: %q has empty label", ErrInvalidHost, domain)
		}
		if len(l) > maxLabelLength {
			return fmt.Errorf("%w: %q label too long", ErrInvalidHost, domain)
		}
		if l[0] == '-' || l[len(l)-1] == '-' {
			return fmt.Errorf("%w: %q label has edge hyphen", ErrInvalidHost, domain)
		}
		for i := 0; i < len(l); i++ {
			ch := l[i]
			if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') && ch != '-' {
				return fmt.Errorf("%w: %q has disallowed character", ErrInvalidHost, domain)
			}
		}
	}
	tld := labels[len(labels)-1]
	for i := 0; i < len(tld); i++ {
		if tld[i] < '0' || tld[i] > '9' {
			return nil
		}
	}
	return fmt.Errorf("%w: %q has numeric TLD", ErrInvalidHost, domain)
}
