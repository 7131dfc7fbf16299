package identity

import (
	"errors"
	"net/http"
	"strings"
)

// DefaultCookieName is the session cookie consulted when no
// Authorization header is present.
const DefaultCookieName = "oc_session"

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCookieName overrides the fallback session cookie name.
func WithCookieName(name string) ExtractorOption {
	return func(e *Extractor) {
		if name != "" {
			e.cookieName = name
		}
	}
}

// Extractor reads the bearer credential off a request and delegates
// verification. It is stateless: every request is verified from scratch.
type Extractor struct {
	verifier   Verifier
	cookieName string
}

// NewExtractor creates an extractor over the given verifier.
func NewExtractor(verifier Verifier, opts ...ExtractorOption) *Extractor {
	e := &Extractor{verifier: verifier, cookieName: DefaultCookieName}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the verified session for the request, or (nil, nil)
// when no credential is present. A credential that is present but fails
// verification yields ErrInvalidCredential.
func (e *Extractor) Extract(r *http.Request) (*SessionDescriptor, error) {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(e.cookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, nil
	}

	session, err := e.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, errors.Join(ErrInvalidCredential, err)
	}
	return session, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
