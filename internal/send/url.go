// Package send delivers packed export files to remote destinations over
// scheme-selected transports, with bounded retries and per-item attempt
// accounting on the push queue.
package send

import (
	"fmt"
	"net/url"
)

// URL is a destination locator decomposed from its string form. The scheme
// selects the transport; the rest parameterizes it.
type URL struct {
	Raw      string
	Scheme   string
	Host     string
	Port     string
	Path     string
	Login    string
	Password string
}

// ParseURL decomposes a destination locator.
func ParseURL(raw string) (URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("parse destination url: %w", err)
	}
	if parsed.Scheme == "" {
		return URL{}, fmt.Errorf("destination url %q has no scheme", raw)
	}

	u := URL{
		Raw:    raw,
		Scheme: parsed.Scheme,
		Host:   parsed.Hostname(),
		Port:   parsed.Port(),
		Path:   parsed.Path,
	}
	if parsed.User != nil {
		u.Login = parsed.User.Username()
		u.Password, _ = parsed.User.Password()
	}
	return u, nil
}

// Addr returns host:port, or host alone when no port is set.
func (u URL) Addr() string {
	if u.Port == "" {
		return u.Host
	}
	return u.Host + ":" + u.Port
}

func (u URL) String() string {
	return u.Raw
}
