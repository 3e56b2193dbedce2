package certstore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // x5t and thumbprints are SHA-1 by definition
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// KeyType names the asymmetric key family held by a [SigningIdentity].
type KeyType string

const (
	KeyTypeRSA     KeyType = "RSA"
	KeyTypeECDSA   KeyType = "ECDSA"
	KeyTypeEd25519 KeyType = "Ed25519"
)

// Metadata describes the certificate a [SigningIdentity] was loaded from.
type Metadata struct {
	Subject          string
	Issuer           string
	SerialNumber     string
	Thumbprint       string
	ThumbprintSHA256 string
	NotBefore        time.Time
	NotAfter         time.Time
	KeyType          KeyType
	KeyBits          int
}

// ValidAt reports whether t lies inside the certificate validity window (inclusive).
func (m Metadata) ValidAt(t time.Time) bool {
	return !t.Before(m.NotBefore) && !t.After(m.NotAfter)
}

// SigningIdentity is the key pair and certificate produced by a single load.
//
// SigningIdentity is immutable after construction and safe for concurrent use.
type SigningIdentity struct {
	privateKey  crypto.Signer
	publicKey   crypto.PublicKey
	certificate *x509.Certificate
	chain       []*x509.Certificate
	metadata    Metadata
	algorithm   string
	x5t         string
	loadID      string
}

// Signer returns the private key. Only token issuers should call it.
func (id *SigningIdentity) Signer() crypto.Signer {
	if id == nil {
		return nil
	}
	return id.privateKey
}

// PublicKey returns the public half of the key pair.
func (id *SigningIdentity) PublicKey() crypto.PublicKey {
	if id == nil {
		return nil
	}
	return id.publicKey
}

// Certificate returns the leaf certificate. Callers must not modify it.
func (id *SigningIdentity) Certificate() *x509.Certificate {
	if id == nil {
		return nil
	}
	return id.certificate
}

// Chain returns a copy of the CA certificates bundled with the leaf, if any.
func (id *SigningIdentity) Chain() []*x509.Certificate {
	if id == nil || len(id.chain) == 0 {
		return nil
	}
	out := make([]*x509.Certificate, len(id.chain))
	copy(out, id.chain)
	return out
}

// Metadata returns certificate details suitable for logging and reports.
func (id *SigningIdentity) Metadata() Metadata {
	if id == nil {
		return Metadata{}
	}
	return id.metadata
}

// Algorithm returns the JWS algorithm bound to the key type (RS256, ES256, ES384,
// ES512 or EdDSA).
func (id *SigningIdentity) Algorithm() string {
	if id == nil {
		return ""
	}
	return id.algorithm
}

// KeyID returns the key identifier stamped into token headers: the certificate
// SHA-1 thumbprint.
func (id *SigningIdentity) KeyID() string {
	if id == nil {
		return ""
	}
	return id.metadata.Thumbprint
}

// LoadID identifies the load operation that produced this identity. Issuers and
// policies derived from the same identity report the same LoadID.
func (id *SigningIdentity) LoadID() string {
	if id == nil {
		return ""
	}
	return id.loadID
}

// VerificationKey returns the public half of the identity. It carries no
// reference to the private key.
func (id *SigningIdentity) VerificationKey() VerificationKey {
	if id == nil {
		return VerificationKey{}
	}
	return VerificationKey{
		PublicKey: id.publicKey,
		KeyID:     id.metadata.Thumbprint,
		X5T:       id.x5t,
		Algorithm: id.algorithm,
		LoadID:    id.loadID,
		NotAfter:  id.metadata.NotAfter,
	}
}

// VerificationKey is the public, verify-only view of a [SigningIdentity].
type VerificationKey struct {
	PublicKey crypto.PublicKey
	KeyID     string
	X5T       string
	Algorithm string
	LoadID    string
	NotAfter  time.Time
}

// IsZero reports whether the key is unset.
func (k VerificationKey) IsZero() bool {
	return k.PublicKey == nil
}

// X5T returns the base64url SHA-1 certificate thumbprint used in the x5t header.
func (id *SigningIdentity) X5T() string {
	if id == nil {
		return ""
	}
	return id.x5t
}

func newIdentity(key crypto.Signer, cert *x509.Certificate, chain []*x509.Certificate, loadID string) (*SigningIdentity, error) {
	pub := key.Public()
	if !publicKeysEqual(pub, cert.PublicKey) {
		return nil, fmt.Errorf("%w: private key does not match certificate", ErrCertificateUnreadable)
	}

	keyType, bits, alg, err := describeKey(pub)
	if err != nil {
		return nil, err
	}

	sum1 := sha1.Sum(cert.Raw) //nolint:gosec
	sum256 := sha256.Sum256(cert.Raw)

	return &SigningIdentity{
		privateKey:  key,
		publicKey:   pub,
		certificate: cert,
		chain:       chain,
		algorithm:   alg,
		x5t:         base64.RawURLEncoding.EncodeToString(sum1[:]),
		loadID:      loadID,
		metadata: Metadata{
			Subject:          cert.Subject.String(),
			Issuer:           cert.Issuer.String(),
			SerialNumber:     cert.SerialNumber.String(),
			Thumbprint:       strings.ToUpper(hex.EncodeToString(sum1[:])),
			ThumbprintSHA256: strings.ToUpper(hex.EncodeToString(sum256[:])),
			NotBefore:        cert.NotBefore,
			NotAfter:         cert.NotAfter,
			KeyType:          keyType,
			KeyBits:          bits,
		},
	}, nil
}

func describeKey(pub crypto.PublicKey) (KeyType, int, string, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		bits := k.N.BitLen()
		if bits < minRSABits {
			return "", 0, "", fmt.Errorf("%w: rsa key too small (%d bits)", ErrCertificateUnreadable, bits)
		}
		return KeyTypeRSA, bits, "RS256", nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return KeyTypeECDSA, 256, "ES256", nil
		case elliptic.P384():
			return KeyTypeECDSA, 384, "ES384", nil
		case elliptic.P521():
			return KeyTypeECDSA, 521, "ES512", nil
		default:
			return "", 0, "", fmt.Errorf("%w: unsupported ecdsa curve", ErrCertificateUnreadable)
		}
	case ed25519.PublicKey:
		return KeyTypeEd25519, 256, "EdDSA", nil
	default:
		return "", 0, "", fmt.Errorf("%w: unsupported key type %T", ErrCertificateUnreadable, pub)
	}
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	eq, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return false
	}
	return eq.Equal(b)
}
