package certstore

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/certauth/internal/certtest"
)

func TestLoadRSAContainer(t *testing.T) {
	b := certtest.MustGenerate(t, "s3cret", certtest.Options{KeyType: certtest.RSA})

	id, err := Load(b.Path, "s3cret")
	require.NoError(t, err)

	assert.Equal(t, "RS256", id.Algorithm())
	assert.IsType(t, &rsa.PrivateKey{}, id.Signer())
	assert.IsType(t, &rsa.PublicKey{}, id.PublicKey())
	assert.True(t, id.PublicKey().(*rsa.PublicKey).Equal(b.Cert.PublicKey))

	meta := id.Metadata()
	assert.Equal(t, KeyTypeRSA, meta.KeyType)
	assert.Equal(t, 2048, meta.KeyBits)
	assert.Len(t, meta.Thumbprint, 40)
	assert.Len(t, meta.ThumbprintSHA256, 64)
	assert.Equal(t, meta.Thumbprint, id.KeyID())
	assert.NotEmpty(t, id.X5T())
	assert.NotEmpty(t, id.LoadID())
	assert.Equal(t, b.Cert.NotAfter, meta.NotAfter)
}

func TestLoadAlgorithmFollowsKeyType(t *testing.T) {
	cases := []struct {
		keyType string
		alg     string
		check   func(t *testing.T, id *SigningIdentity)
	}{
		{certtest.ECDSAP256, "ES256", func(t *testing.T, id *SigningIdentity) {
			assert.IsType(t, &ecdsa.PublicKey{}, id.PublicKey())
		}},
		{certtest.ECDSAP384, "ES384", func(t *testing.T, id *SigningIdentity) {
			assert.IsType(t, &ecdsa.PublicKey{}, id.PublicKey())
		}},
		{certtest.Ed25519, "EdDSA", func(t *testing.T, id *SigningIdentity) {
			assert.IsType(t, ed25519.PublicKey{}, id.PublicKey())
		}},
	}
	for _, tc := range cases {
		t.Run(tc.keyType, func(t *testing.T) {
			b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: tc.keyType})
			id, err := Load(b.Path, "pw")
			require.NoError(t, err)
			assert.Equal(t, tc.alg, id.Algorithm())
			tc.check(t, id)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	id, err := Load(filepath.Join(t.TempDir(), "absent.p12"), "pw")
	require.ErrorIs(t, err, ErrCertificateNotFound)
	assert.Nil(t, id)
}

func TestLoadWrongPassphraseIsUnreadable(t *testing.T) {
	b := certtest.MustGenerate(t, "right", certtest.Options{KeyType: certtest.ECDSAP256})

	id, err := Load(b.Path, "wrong")
	require.ErrorIs(t, err, ErrCertificateUnreadable)
	assert.NotErrorIs(t, err, ErrCertificateNotFound)
	assert.Nil(t, id, "no partially-initialized identity on failure")
}

func TestLoadMalformedContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.p12")
	require.NoError(t, os.WriteFile(path, []byte("definitely not pkcs12"), 0o600))

	id, err := Load(path, "pw")
	require.ErrorIs(t, err, ErrCertificateUnreadable)
	assert.Nil(t, id)
}

func TestLoadEmptyFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.p12")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	_, err := Load(empty, "pw")
	require.ErrorIs(t, err, ErrCertificateUnreadable)

	_, err = Load(dir, "pw")
	require.ErrorIs(t, err, ErrCertificateUnreadable)
}

func TestLoadOutsideValidityWindow(t *testing.T) {
	notBefore := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	notAfter := notBefore.Add(24 * time.Hour)
	b := certtest.MustGenerate(t, "pw", certtest.Options{
		KeyType:   certtest.ECDSAP256,
		NotBefore: notBefore,
		NotAfter:  notAfter,
	})

	_, err := LoadAt(b.Path, "pw", notAfter.Add(time.Second))
	require.ErrorIs(t, err, ErrCertificateExpired)

	_, err = LoadAt(b.Path, "pw", notBefore.Add(-time.Second))
	require.ErrorIs(t, err, ErrCertificateExpired)

	id, err := LoadAt(b.Path, "pw", notBefore.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, id.Metadata().ValidAt(notBefore.Add(time.Hour)))
}

func TestEachLoadGetsItsOwnLoadID(t *testing.T) {
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})

	first, err := Load(b.Path, "pw")
	require.NoError(t, err)
	second, err := Load(b.Path, "pw")
	require.NoError(t, err)

	assert.Equal(t, first.KeyID(), second.KeyID())
	assert.NotEqual(t, first.LoadID(), second.LoadID())
}

func TestVerificationKeyHasNoPrivateHalf(t *testing.T) {
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})
	id, err := Parse(b.Data, "pw", time.Now())
	require.NoError(t, err)

	vk := id.VerificationKey()
	_, isPrivate := vk.PublicKey.(ed25519.PrivateKey)
	assert.False(t, isPrivate)
	assert.Equal(t, id.KeyID(), vk.KeyID)
	assert.Equal(t, id.LoadID(), vk.LoadID)
	assert.Equal(t, "EdDSA", vk.Algorithm)
	assert.False(t, vk.IsZero())
}

func TestFromKeyPairRejectsMismatchedKey(t *testing.T) {
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.ECDSAP256})
	other, err := certtest.NewKey(certtest.ECDSAP256)
	require.NoError(t, err)

	_, err = FromKeyPair(other, b.Cert, time.Now())
	require.ErrorIs(t, err, ErrCertificateUnreadable)

	id, err := FromKeyPair(b.Key, b.Cert, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "ES256", id.Algorithm())
}

func TestNilIdentityAccessors(t *testing.T) {
	var id *SigningIdentity
	assert.Nil(t, id.Signer())
	assert.Nil(t, id.PublicKey())
	assert.Empty(t, id.Algorithm())
	assert.True(t, id.VerificationKey().IsZero())
}
