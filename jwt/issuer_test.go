package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/certauth/internal/certtest"
)

func TestNewIssuerWithoutKeyFails(t *testing.T) {
	_, err := NewIssuer(nil, IssuerConfig{})
	require.ErrorIs(t, err, ErrNoSigningKey)

	var zero Issuer
	_, err = zero.Issue(map[string]any{"sub": "alice"}, t0)
	require.ErrorIs(t, err, ErrNoSigningKey)

	var nilIssuer *Issuer
	_, err = nilIssuer.Issue(nil, t0)
	require.ErrorIs(t, err, ErrNoSigningKey)
}

func TestNewIssuerRejectsNegativeTTL(t *testing.T) {
	_, err := NewIssuer(newIdentity(t, certtest.Ed25519), IssuerConfig{TTL: -time.Second})
	require.Error(t, err)
}

func TestIssueHeaderMatchesKeyType(t *testing.T) {
	cases := map[string]string{
		certtest.RSA:       "RS256",
		certtest.ECDSAP256: "ES256",
		certtest.ECDSAP384: "ES384",
		certtest.Ed25519:   "EdDSA",
	}
	for keyType, alg := range cases {
		t.Run(keyType, func(t *testing.T) {
			id := newIdentity(t, keyType)
			iss, err := NewIssuer(id, IssuerConfig{})
			require.NoError(t, err)
			assert.Equal(t, alg, iss.Algorithm())

			tok, err := iss.Issue(map[string]any{"sub": "alice"}, t0)
			require.NoError(t, err)

			parts := strings.Split(tok.Raw, ".")
			require.Len(t, parts, 3, "compact JWS has three segments")

			rawHeader, err := base64.RawURLEncoding.DecodeString(parts[0])
			require.NoError(t, err)
			var header map[string]any
			require.NoError(t, json.Unmarshal(rawHeader, &header))

			assert.Equal(t, alg, header["alg"])
			assert.Equal(t, "JWT", header["typ"])
			assert.Equal(t, id.KeyID(), header["kid"])
			assert.Equal(t, id.X5T(), header["x5t"])
			assert.Equal(t, tok.Raw, tok.String())
		})
	}
}

func TestIssueSetsTimesAndCopiesClaimsVerbatim(t *testing.T) {
	iss, pol := newPair(t, certtest.Ed25519, IssuerConfig{TTL: time.Hour}, PolicyOptions{})

	in := map[string]any{
		"sub":   "alice",
		"role":  "editor",
		"exp":   1,
		"iat":   2,
		"nbf":   3,
		"flags": []any{"a", "b"},
	}
	tok, err := iss.Issue(in, t0)
	require.NoError(t, err)

	assert.WithinDuration(t, t0, tok.IssuedAt, 0)
	assert.WithinDuration(t, t0, tok.NotBefore, 0)
	assert.WithinDuration(t, t0.Add(time.Hour), tok.ExpiresAt, 0)
	assert.Empty(t, tok.ID)
	assert.Equal(t, 1, in["exp"], "caller map is not mutated")

	claims, err := pol.Validate(tok.Raw, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.WithinDuration(t, t0.Add(time.Hour), claims.ExpiresAt(), 0)
	assert.WithinDuration(t, t0, claims.IssuedAt(), 0)
	assert.WithinDuration(t, t0, claims.NotBefore(), 0)
	role, ok := claims.Get("role")
	require.True(t, ok)
	assert.Equal(t, "editor", role)
	assert.Equal(t, []any{"a", "b"}, claims.Map()["flags"])
	_, hasJTI := claims.Get("jti")
	assert.False(t, hasJTI)
}

func TestIssueConfigIssuerAudienceOnlyWhenAbsent(t *testing.T) {
	iss, pol := newPair(t, certtest.ECDSAP256,
		IssuerConfig{Issuer: "https://api.example", Audience: "blog"},
		PolicyOptions{},
	)

	tok, err := iss.Issue(map[string]any{"sub": "alice"}, t0)
	require.NoError(t, err)
	claims, err := pol.Validate(tok.Raw, t0)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example", claims.Issuer())
	assert.Equal(t, []string{"blog"}, claims.Audience())

	tok, err = iss.Issue(map[string]any{"sub": "alice", "iss": "caller", "aud": []string{"x", "y"}}, t0)
	require.NoError(t, err)
	claims, err = pol.Validate(tok.Raw, t0)
	require.NoError(t, err)
	assert.Equal(t, "caller", claims.Issuer())
	assert.Equal(t, []string{"x", "y"}, claims.Audience())
}

func TestIssueTokenIDOptIn(t *testing.T) {
	id := newIdentity(t, certtest.Ed25519)
	iss, err := NewIssuer(id, IssuerConfig{IncludeTokenID: true})
	require.NoError(t, err)

	a, err := iss.Issue(map[string]any{"sub": "alice"}, t0)
	require.NoError(t, err)
	b, err := iss.Issue(map[string]any{"sub": "alice"}, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Raw, b.Raw)

	c, err := iss.Issue(map[string]any{"sub": "alice", "jti": "fixed"}, t0)
	require.NoError(t, err)
	assert.Equal(t, "fixed", c.ID)
}

func TestIssueDeterministicWithoutTokenID(t *testing.T) {
	for _, keyType := range []string{certtest.RSA, certtest.Ed25519} {
		t.Run(keyType, func(t *testing.T) {
			iss, _ := newPair(t, keyType, IssuerConfig{}, PolicyOptions{})
			claims := map[string]any{"sub": "alice", "n": 1}

			a, err := iss.Issue(claims, t0)
			require.NoError(t, err)
			b, err := iss.Issue(claims, t0)
			require.NoError(t, err)
			assert.Equal(t, a.Raw, b.Raw)
		})
	}
}

func TestIssueTimeResolutionIsOneSecond(t *testing.T) {
	iss, _ := newPair(t, certtest.RSA, IssuerConfig{}, PolicyOptions{})
	claims := map[string]any{"sub": "alice"}

	a, err := iss.Issue(claims, t0.Add(100*time.Millisecond))
	require.NoError(t, err)
	b, err := iss.Issue(claims, t0.Add(900*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, a.Raw, b.Raw, "same second collapses to one token")
	assert.Equal(t, t0, a.IssuedAt)

	c, err := iss.Issue(claims, t0.Add(time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, a.Raw, c.Raw)

	withID, _ := newPair(t, certtest.RSA, IssuerConfig{IncludeTokenID: true}, PolicyOptions{})
	d, err := withID.Issue(claims, t0)
	require.NoError(t, err)
	e, err := withID.Issue(claims, t0)
	require.NoError(t, err)
	assert.NotEqual(t, d.Raw, e.Raw, "jti keeps same-second tokens distinct")
}

func TestIssueConcurrentCallsAreIndependent(t *testing.T) {
	iss, pol := newPair(t, certtest.ECDSAP256, IssuerConfig{TTL: time.Hour}, PolicyOptions{})

	const workers = 32
	tokens := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := iss.Issue(map[string]any{"sub": "user", "n": i}, t0.Add(time.Duration(i)*time.Second))
			if err != nil {
				errs[i] = err
				return
			}
			tokens[i] = tok.Raw
			_, errs[i] = pol.Validate(tok.Raw, t0.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[tokens[i]]
		assert.False(t, dup)
		seen[tokens[i]] = struct{}{}
	}
}
