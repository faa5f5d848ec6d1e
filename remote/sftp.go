package remote

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// sftpConn is a SecureShell connection: one SSH transport carrying the
// SFTP subsystem.
type sftpConn struct {
	connEnv
	client *sftp.Client
	// transport is the SSH client the subsystem runs on; nil when the
	// subsystem was opened over a bare pipe.
	transport io.Closer
	closed    bool
}

func (s *Selector) dialSFTP(p Params) (Connection, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	hostKeyCallback := s.cfg.HostKeyCallback
	if hostKeyCallback == nil {
		s.cfg.Logger.Warn("no host key callback configured, accepting any host key", zap.String("host", p.Host))
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	config := &ssh.ClientConfig{
		User: p.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(p.Password),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.cfg.DialTimeout,
	}

	raw, err := s.dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(raw, addr, config)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ssh handshake failed: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sub, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}
	return newSFTPConn(sub, client, s.cfg.Logger, s.cfg.Metrics), nil
}

func newSFTPConn(client *sftp.Client, transport io.Closer, log *zap.Logger, m *Metrics) *sftpConn {
	return &sftpConn{
		connEnv:   connEnv{log: log, metrics: m},
		client:    client,
		transport: transport,
	}
}

func (c *sftpConn) Mode() SecurityMode { return SecureShell }

func (c *sftpConn) ReadDir(path string) ([]DirectoryEntry, error) {
	infos, err := c.client.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]DirectoryEntry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		entries = append(entries, entryFromFileInfo(fi))
	}
	return entries, nil
}

// entryFromFileInfo decides the kind from the leading type character of the
// long-form ("ls -l") mode string.
func entryFromFileInfo(fi os.FileInfo) DirectoryEntry {
	entry := DirectoryEntry{Name: fi.Name(), Kind: File}
	if longForm := fi.Mode().String(); len(longForm) > 0 && longForm[0] == 'd' {
		entry.Kind = Directory
		return entry
	}
	if size := fi.Size(); size > 0 {
		entry.Size = size
	}
	return entry
}

func (c *sftpConn) Store(remotePath string, r io.Reader) error {
	f, err := c.client.Create(remotePath)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (c *sftpConn) Retrieve(remotePath string, w io.Writer) error {
	f, err := c.client.Open(remotePath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func (c *sftpConn) Delete(path string) error { return c.client.Remove(path) }

func (c *sftpConn) Rename(from, to string) error { return c.client.PosixRename(from, to) }

func (c *sftpConn) MakeDir(path string) error { return c.client.Mkdir(path) }

// SupportsDigest is false; SFTP has no portable remote checksum and the SSH
// channel carries its own integrity protection.
func (c *sftpConn) SupportsDigest() bool { return false }

func (c *sftpConn) FetchDigest(string) Checksum { return "" }

func (c *sftpConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.client.Close()
	if c.transport != nil {
		err = errors.Join(err, c.transport.Close())
	}
	return err
}

var _ Connection = (*sftpConn)(nil)
