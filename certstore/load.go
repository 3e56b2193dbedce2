package certstore

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

const minRSABits = 2048

// Load reads the PKCS#12 container at path, unlocks it with passphrase and checks
// the certificate validity window against the current time.
//
// Load is synchronous and intended to run once during startup.
func Load(path, passphrase string) (*SigningIdentity, error) {
	return LoadAt(path, passphrase, time.Now())
}

// LoadAt is [Load] with an explicit validity-check time.
func LoadAt(path, passphrase string, now time.Time) (*SigningIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrCertificateUnreadable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCertificateUnreadable, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCertificateUnreadable, path, err)
	}

	return Parse(data, passphrase, now)
}

// Parse decodes an in-memory PKCS#12 container.
func Parse(data []byte, passphrase string, now time.Time) (*SigningIdentity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrCertificateUnreadable)
	}

	rawKey, cert, chain, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: incorrect passphrase", ErrCertificateUnreadable)
		}
		return nil, fmt.Errorf("%w: %v", ErrCertificateUnreadable, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: container holds no certificate", ErrCertificateUnreadable)
	}

	key, ok := rawKey.(crypto.Signer)
	if !ok || key == nil {
		return nil, fmt.Errorf("%w: container key of type %T cannot sign", ErrCertificateUnreadable, rawKey)
	}

	if err := checkValidity(cert, now); err != nil {
		return nil, err
	}

	return newIdentity(key, cert, chain, uuid.NewString())
}

// FromKeyPair builds an identity from key material that is already in memory,
// for hosts that source keys from somewhere other than a container file. The same
// validity and key checks as [Parse] apply.
func FromKeyPair(key crypto.Signer, cert *x509.Certificate, now time.Time) (*SigningIdentity, error) {
	if key == nil || cert == nil {
		return nil, fmt.Errorf("%w: key and certificate are required", ErrCertificateUnreadable)
	}
	if err := checkValidity(cert, now); err != nil {
		return nil, err
	}
	return newIdentity(key, cert, nil, uuid.NewString())
}

func checkValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return fmt.Errorf("%w: valid %s to %s, checked at %s",
			ErrCertificateExpired,
			cert.NotBefore.UTC().Format(time.RFC3339),
			cert.NotAfter.UTC().Format(time.RFC3339),
			now.UTC().Format(time.RFC3339),
		)
	}
	return nil
}
