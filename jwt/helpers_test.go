package jwt

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/internal/certtest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newIdentity(t testing.TB, keyType string) *certstore.SigningIdentity {
	t.Helper()
	b, err := certtest.Generate("", "pw", certtest.Options{
		KeyType:   keyType,
		NotBefore: t0.Add(-24 * time.Hour),
		NotAfter:  t0.Add(365 * 24 * time.Hour),
	})
	require.NoError(t, err)
	id, err := certstore.Parse(b.Data, "pw", t0)
	require.NoError(t, err)
	return id
}

func newPair(t testing.TB, keyType string, icfg IssuerConfig, opts PolicyOptions) (*Issuer, *ValidationPolicy) {
	t.Helper()
	id := newIdentity(t, keyType)
	iss, err := NewIssuer(id, icfg)
	require.NoError(t, err)
	pol, err := BuildPolicy(id, opts)
	require.NoError(t, err)
	return iss, pol
}

// flipSignatureByte returns token with byte i of the decoded signature inverted.
func flipSignatureByte(t testing.TB, token string, i int) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[i] ^= 0xFF
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

func signatureLen(t testing.TB, token string) int {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	return len(sig)
}
