// Package certtest builds throwaway certificates and PKCS#12 containers for tests
// and local tooling. Nothing here is suitable for production key material.
package certtest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// TB is the subset of testing.TB used by the helpers.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	TempDir() string
}

// Key families understood by [NewKey].
const (
	RSA       = "rsa"
	ECDSAP256 = "ecdsa-p256"
	ECDSAP384 = "ecdsa-p384"
	Ed25519   = "ed25519"
)

// Options controls the generated certificate.
type Options struct {
	KeyType    string
	CommonName string
	NotBefore  time.Time
	NotAfter   time.Time
}

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
	rsaErr  error
)

// NewKey returns a private key of the requested family. RSA keys are generated
// once per process and reused since 2048-bit generation is slow.
func NewKey(keyType string) (crypto.Signer, error) {
	switch keyType {
	case "", RSA:
		rsaOnce.Do(func() {
			rsaKey, rsaErr = rsa.GenerateKey(rand.Reader, 2048)
		})
		return rsaKey, rsaErr
	case ECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case ECDSAP384:
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	default:
		return nil, fmt.Errorf("certtest: unknown key type %q", keyType)
	}
}

// NewCertificate creates a self-signed certificate for key.
func NewCertificate(key crypto.Signer, opts Options) (*x509.Certificate, error) {
	opts = withDefaults(opts)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: opts.CommonName},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// Container returns an encoded PKCS#12 container for key and cert.
func Container(key crypto.Signer, cert *x509.Certificate, passphrase string) ([]byte, error) {
	return pkcs12.Modern.Encode(key, cert, nil, passphrase)
}

// Bundle is a generated key, certificate and container written to disk.
type Bundle struct {
	Key        crypto.Signer
	Cert       *x509.Certificate
	Data       []byte
	Path       string
	Passphrase string
}

// Generate builds a key pair, a self-signed certificate and a PKCS#12 container.
// When dir is non-empty the container is written to dir/identity.p12.
func Generate(dir, passphrase string, opts Options) (*Bundle, error) {
	key, err := NewKey(opts.KeyType)
	if err != nil {
		return nil, err
	}
	cert, err := NewCertificate(key, opts)
	if err != nil {
		return nil, fmt.Errorf("certtest: create certificate: %w", err)
	}
	data, err := Container(key, cert, passphrase)
	if err != nil {
		return nil, fmt.Errorf("certtest: encode container: %w", err)
	}

	b := &Bundle{Key: key, Cert: cert, Data: data, Passphrase: passphrase}
	if dir != "" {
		b.Path = filepath.Join(dir, "identity.p12")
		if err := os.WriteFile(b.Path, data, 0o600); err != nil {
			return nil, fmt.Errorf("certtest: write container: %w", err)
		}
	}
	return b, nil
}

// MustGenerate is [Generate] writing into tb.TempDir, failing the test on error.
func MustGenerate(tb TB, passphrase string, opts Options) *Bundle {
	tb.Helper()
	b, err := Generate(tb.TempDir(), passphrase, opts)
	if err != nil {
		tb.Fatalf("generate identity: %v", err)
	}
	return b
}

func withDefaults(opts Options) Options {
	if opts.CommonName == "" {
		opts.CommonName = "certauth-test"
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = opts.NotBefore.Add(365 * 24 * time.Hour)
	}
	return opts
}
