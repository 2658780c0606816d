package send

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPTransport delivers over FTP, or FTP with explicit TLS when TLS is set.
type FTPTransport struct {
	TLS     bool
	Timeout time.Duration
}

// Connect dials and logs in. Without credentials in the url an anonymous
// login is attempted.
func (t *FTPTransport) Connect(ctx context.Context, target URL) (Session, error) {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	addr := target.Addr()
	if target.Port == "" {
		addr = target.Host + ":21"
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	}
	if t.TLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: target.Host,
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	login, password := target.Login, target.Password
	if login == "" {
		login, password = "anonymous", "anonymous"
	}
	if err := conn.Login(login, password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("login to %s: %w", addr, err)
	}

	return &ftpSession{conn: conn}, nil
}

type ftpSession struct {
	conn *ftp.ServerConn
}

// EnsureDir walks the path one segment at a time, creating directories that
// do not exist yet. A ChangeDir failure is assumed to mean "missing"; the
// retried ChangeDir after MakeDir surfaces any other cause.
func (s *ftpSession) EnsureDir(path string) error {
	for _, dir := range strings.Split(strings.Trim(path, "/"), "/") {
		if dir == "" {
			continue
		}
		if err := s.conn.ChangeDir(dir); err != nil {
			if err := s.conn.MakeDir(dir); err != nil {
				return fmt.Errorf("create remote directory %s: %w", dir, err)
			}
			if err := s.conn.ChangeDir(dir); err != nil {
				return fmt.Errorf("enter remote directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

func (s *ftpSession) Upload(localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := s.conn.Stor(remoteName, f); err != nil {
		return fmt.Errorf("store %s: %w", remoteName, err)
	}
	return nil
}

func (s *ftpSession) Close() error {
	return s.conn.Quit()
}
