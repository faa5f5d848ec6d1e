package remote

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/gonzalop/ftp"
)

const (
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

// controlChannel is the subset of *ftp.Client used by the control-channel
// backends.
type controlChannel interface {
	Login(username, password string) error
	List(path string) ([]*ftp.Entry, error)
	Store(remotePath string, r io.Reader) error
	Retrieve(remotePath string, w io.Writer) error
	Delete(path string) error
	Rename(from, to string) error
	MakeDir(path string) error
	Quote(command string, args ...string) (*ftp.Response, error)
	Quit() error
}

// ftpConn serves both Plain and TLSSecured connections; they differ only in
// how the control channel was established.
type ftpConn struct {
	connEnv
	ctl    controlChannel
	mode   SecurityMode
	closed bool
}

// rawLineParser hands every LIST line back untouched so the listing is
// normalized by ParseListLine rather than by the client library.
type rawLineParser struct{}

func (rawLineParser) Parse(line string) (*ftp.Entry, bool) {
	return &ftp.Entry{Raw: line, Name: line}, true
}

func (s *Selector) dialFTP(p Params) (Connection, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	opts := []ftp.Option{
		ftp.WithCustomListParser(rawLineParser{}),
	}
	if s.cfg.DialTimeout > 0 {
		opts = append(opts, ftp.WithTimeout(s.cfg.DialTimeout))
	}
	if !p.Passive {
		opts = append(opts, ftp.WithActiveMode())
	}
	if p.Mode == TLSSecured {
		opts = append(opts, ftp.WithExplicitTLS(s.tlsConfig(p.Host)))
	}

	client, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	user, pass := p.Username, p.Password
	if user == "" || pass == "" {
		user, pass = anonymousUser, anonymousPassword
	}
	if err := client.Login(user, pass); err != nil {
		_ = client.Quit() // Close connection on login failure
		return nil, err
	}

	return &ftpConn{
		connEnv: connEnv{log: s.cfg.Logger, metrics: s.cfg.Metrics},
		ctl:     client,
		mode:    p.Mode,
	}, nil
}

func (s *Selector) tlsConfig(host string) *tls.Config {
	var cfg *tls.Config
	if s.cfg.TLSConfig != nil {
		cfg = s.cfg.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
		cfg.ServerName = host
	}
	return cfg
}

func (c *ftpConn) Mode() SecurityMode { return c.mode }

// control returns the live control channel, or errNotConnected once the
// session has been closed.
func (c *ftpConn) control() (controlChannel, error) {
	if c.closed {
		return nil, errNotConnected
	}
	return c.ctl, nil
}

func (c *ftpConn) ReadDir(path string) ([]DirectoryEntry, error) {
	ctl, err := c.control()
	if err != nil {
		return nil, err
	}
	raw, err := ctl.List(path)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(raw))
	for _, e := range raw {
		lines = append(lines, e.Raw)
	}
	return parseListLines(lines, c.log), nil
}

func (c *ftpConn) Store(remotePath string, r io.Reader) error {
	ctl, err := c.control()
	if err != nil {
		return err
	}
	return ctl.Store(remotePath, r)
}

func (c *ftpConn) Retrieve(remotePath string, w io.Writer) error {
	ctl, err := c.control()
	if err != nil {
		return err
	}
	return ctl.Retrieve(remotePath, w)
}

func (c *ftpConn) Delete(path string) error {
	ctl, err := c.control()
	if err != nil {
		return err
	}
	return ctl.Delete(path)
}

func (c *ftpConn) Rename(from, to string) error {
	ctl, err := c.control()
	if err != nil {
		return err
	}
	return ctl.Rename(from, to)
}

func (c *ftpConn) MakeDir(path string) error {
	ctl, err := c.control()
	if err != nil {
		return err
	}
	return ctl.MakeDir(path)
}

func (c *ftpConn) SupportsDigest() bool { return true }

func (c *ftpConn) FetchDigest(path string) Checksum {
	return negotiateDigest(c.quote, path, c.log)
}

// quote sends a digest command. Replies always carry a status code here;
// one without a code fails as a transport error and the digest is absent.
func (c *ftpConn) quote(command, path string) (digestReply, error) {
	ctl, err := c.control()
	if err != nil {
		return digestReply{}, err
	}
	resp, err := ctl.Quote(command, path)
	if err != nil {
		var perr *ftp.ProtocolError
		if errors.As(err, &perr) {
			return digestReply{Code: perr.Code, Text: perr.Response}, nil
		}
		return digestReply{}, fmt.Errorf("%s: %w", command, err)
	}
	if resp == nil {
		return digestReply{}, fmt.Errorf("%s: empty reply", command)
	}
	return digestReply{Code: resp.Code, Text: resp.Message}, nil
}

func (c *ftpConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ctl.Quit()
}

var _ Connection = (*ftpConn)(nil)

