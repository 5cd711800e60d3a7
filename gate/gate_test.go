package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iplogin/options"
)

func newStore(t *testing.T, ips, key string) *options.Memory {
	t.Helper()
	s := options.NewMemory()
	require.NoError(t, s.Set(options.AllowedIPs, ips))
	require.NoError(t, s.Set(options.SecretKey, key))
	return s
}

func TestValidKeyWhitelistsAndRedirectsToLogin(t *testing.T) {
	s := newStore(t, "1.2.3.4", "abc123")
	g := New(s)

	d, err := g.Evaluate(Request{IP: "9.9.9.9", Target: FrontPage, QueryKey: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, RedirectToLogin, d.Action)
	assert.True(t, d.Whitelisted)

	raw, _ := s.Get(options.AllowedIPs, "")
	assert.Equal(t, "1.2.3.4\n9.9.9.9", raw)
}

func TestValidKeyRedirectsEvenWhenAlreadyListed(t *testing.T) {
	s := newStore(t, "1.2.3.4", "abc123")
	g := New(s)

	for _, target := range []Target{FrontPage, Admin, Login, Other, Async} {
		d, err := g.Evaluate(Request{IP: "1.2.3.4", Target: target, QueryKey: "abc123"})
		require.NoError(t, err)
		assert.Equal(t, RedirectToLogin, d.Action, target.String())
		assert.False(t, d.Whitelisted)
	}
	raw, _ := s.Get(options.AllowedIPs, "")
	assert.Equal(t, "1.2.3.4", raw)
}

func TestEmptySecretDisablesWhitelisting(t *testing.T) {
	s := newStore(t, "", "")
	g := New(s)

	d, err := g.Evaluate(Request{IP: "1.1.1.1", Target: Admin, QueryKey: ""})
	require.NoError(t, err)
	assert.Equal(t, RedirectToHome, d.Action)
	assert.ErrorIs(t, d.Reason, ErrAuthorizationDenied)

	raw, _ := s.Get(options.AllowedIPs, "")
	assert.Equal(t, "", raw)
}

func TestWrongKeyFallsThrough(t *testing.T) {
	s := newStore(t, "", "abc123")
	g := New(s)

	d, err := g.Evaluate(Request{IP: "1.1.1.1", Target: Login, QueryKey: "ABC123"})
	require.NoError(t, err)
	assert.Equal(t, RedirectToHome, d.Action)
}

func TestFrontPageAndAsyncAlwaysAllowed(t *testing.T) {
	g := New(newStore(t, "1.2.3.4", "abc123"))
	for _, target := range []Target{FrontPage, Async} {
		d, err := g.Evaluate(Request{IP: "8.8.8.8", Target: target})
		require.NoError(t, err)
		assert.Equal(t, Allow, d.Action, target.String())
		assert.Nil(t, d.Reason)
	}
}

func TestUngatedPagesNeverBlocked(t *testing.T) {
	g := New(newStore(t, "1.2.3.4", ""))
	d, err := g.Evaluate(Request{IP: "8.8.8.8", Target: Other})
	require.NoError(t, err)
	assert.Equal(t, Allow, d.Action)
}

func TestListedIPReachesGatedTargets(t *testing.T) {
	g := New(newStore(t, "10.0.0.1\n1.2.3.4", ""))
	for _, target := range []Target{Admin, Login} {
		d, err := g.Evaluate(Request{IP: "1.2.3.4", Target: target})
		require.NoError(t, err)
		assert.Equal(t, Allow, d.Action, target.String())
	}
}

func TestEmptyIPNeverMatches(t *testing.T) {
	s := newStore(t, "1.2.3.4", "abc123")
	g := New(s)

	d, err := g.Evaluate(Request{IP: "", Target: Admin})
	require.NoError(t, err)
	assert.Equal(t, RedirectToHome, d.Action)

	d, err = g.Evaluate(Request{IP: "", Target: Login, QueryKey: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, RedirectToLogin, d.Action)
	raw, _ := s.Get(options.AllowedIPs, "")
	assert.Equal(t, "1.2.3.4", raw, "empty IP is not stored")
}

type failingStore struct{ options.Store }

func (failingStore) Get(string, string) (string, error) { return "", errors.New("disk gone") }

func TestStoreErrorsPropagate(t *testing.T) {
	g := New(failingStore{options.NewMemory()})
	_, err := g.Evaluate(Request{IP: "1.1.1.1", Target: Admin})
	assert.Error(t, err)
}
