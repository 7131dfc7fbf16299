package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclass-zw/platform/pkg/identity"
)

type mapVerifier map[string]*identity.SessionDescriptor

func (v mapVerifier) Verify(ctx context.Context, token string) (*identity.SessionDescriptor, error) {
	if s, ok := v[token]; ok {
		return s, nil
	}
	return nil, errors.New("bad token")
}

func TestExtractor(t *testing.T) {
	t.Parallel()

	verifier := mapVerifier{
		"good-token": {UserID: "u1", Role: "teacher", HomeTenantID: "T1"},
	}

	t.Run("reads the bearer token", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "u1", session.UserID)
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer good-token")

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		require.NotNil(t, session)
	})

	t.Run("falls back to the session cookie", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: identity.DefaultCookieName, Value: "good-token"})

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		require.NotNil(t, session)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(mapVerifier{
			"header-token": {UserID: "from-header"},
			"cookie-token": {UserID: "from-cookie"},
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: identity.DefaultCookieName, Value: "cookie-token"})

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		assert.Equal(t, "from-header", session.UserID)
	})

	t.Run("custom cookie name", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier, identity.WithCookieName("sid"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "good-token"})

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		require.NotNil(t, session)
	})

	t.Run("absent credential is not an error", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("non-bearer authorization is ignored", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		session, err := extractor.Extract(req)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("failed verification is an invalid credential", func(t *testing.T) {
		t.Parallel()

		extractor := identity.NewExtractor(verifier)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer forged")

		session, err := extractor.Extract(req)
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
		assert.Nil(t, session)
	})
}

func TestActiveMembership(t *testing.T) {
	t.Parallel()

	session := &identity.SessionDescriptor{
		UserID:       "u1",
		HomeTenantID: "T1",
		Memberships: []identity.Membership{
			{TenantID: "T1", Role: "teacher", Status: identity.MembershipActive},
			{TenantID: "T2", Role: "teacher", Status: identity.MembershipSuspended},
		},
	}

	m, ok := session.ActiveMembership("T1")
	require.True(t, ok)
	assert.Equal(t, "teacher", m.Role)

	_, ok = session.ActiveMembership("T2")
	assert.False(t, ok, "suspended membership grants nothing")

	_, ok = session.ActiveMembership("T3")
	assert.False(t, ok)
}
