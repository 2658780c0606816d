package send

import (
	"context"
	"errors"
	"fmt"
)

// ErrSchemeNotSupported is returned when no transport is registered for a
// destination's scheme. This is a configuration error: delivery is refused.
var ErrSchemeNotSupported = errors.New("url scheme not supported")

// Session is one open connection to a destination. Implementations must not
// leak the underlying connection when any operation fails; Close is always
// safe to call.
type Session interface {
	// EnsureDir makes sure the remote directory exists, creating missing
	// path segments, and leaves the session positioned to upload into it.
	EnsureDir(path string) error

	// Upload stores one local file under the given remote name.
	Upload(localPath, remoteName string) error

	// Close disconnects cleanly.
	Close() error
}

// Transport opens sessions for one url scheme.
type Transport interface {
	Connect(ctx context.Context, target URL) (Session, error)
}

// Transports maps schemes to transports. Built once at startup.
type Transports map[string]Transport

// DefaultTransports returns the built-in transport mapping.
func DefaultTransports() Transports {
	return Transports{
		"local": &LocalTransport{},
		"dummy": &LocalTransport{Discard: true},
		"ftp":   &FTPTransport{},
		"ftps":  &FTPTransport{TLS: true},
		"sftp":  &SFTPTransport{},
	}
}

// For resolves the transport for a destination.
func (t Transports) For(target URL) (Transport, error) {
	transport, ok := t[target.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotSupported, target.Scheme)
	}
	return transport, nil
}
