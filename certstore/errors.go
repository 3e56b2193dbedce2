package certstore

import "errors"

var (
	// ErrCertificateNotFound is returned when the container path does not exist.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrCertificateUnreadable is returned when the container cannot be decoded with the
	// supplied passphrase, or when the key material inside it is unusable.
	ErrCertificateUnreadable = errors.New("certificate unreadable")
	// ErrCertificateExpired is returned when the load time falls outside the
	// certificate's NotBefore/NotAfter window.
	ErrCertificateExpired = errors.New("certificate outside validity window")
)
