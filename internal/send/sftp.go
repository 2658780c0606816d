package send

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPTransport delivers over SFTP with password authentication taken from
// the destination url.
type SFTPTransport struct {
	Timeout time.Duration

	// HostKeyCallback verifies the server key. Defaults to accepting any
	// key, matching the trust model of the FTP transports; deployments that
	// pin host keys inject their own callback.
	HostKeyCallback ssh.HostKeyCallback
}

// Connect dials the SSH endpoint and opens an SFTP subsystem session.
func (t *SFTPTransport) Connect(ctx context.Context, target URL) (Session, error) {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	hostKey := t.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec
	}

	addr := target.Addr()
	if target.Port == "" {
		addr = target.Host + ":22"
	}

	sshConfig := &ssh.ClientConfig{
		User:            target.Login,
		Auth:            []ssh.AuthMethod{ssh.Password(target.Password)},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		_ = sshConn.Close()
		return nil, fmt.Errorf("open sftp session on %s: %w", addr, err)
	}

	if err := ctx.Err(); err != nil {
		_ = client.Close()
		_ = sshConn.Close()
		return nil, err
	}

	return &sftpSession{ssh: sshConn, client: client}, nil
}

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
	dir    string
}

func (s *sftpSession) EnsureDir(dir string) error {
	if err := s.client.MkdirAll(dir); err != nil {
		return fmt.Errorf("create remote directory %s: %w", dir, err)
	}
	s.dir = dir
	return nil
}

func (s *sftpSession) Upload(localPath, remoteName string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	remotePath := path.Join(s.dir, remoteName)
	dest, err := s.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	_, err = io.Copy(dest, src)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	return nil
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if cerr := s.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}
