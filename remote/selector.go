package remote

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Config carries everything the Selector needs; there is no package-level
// state.
type Config struct {
	Capabilities Capabilities

	// TLSConfig is cloned for every TLSSecured connection. ServerName
	// defaults to the connect host.
	TLSConfig *tls.Config

	// HostKeyCallback verifies SSH host keys. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback

	// DialTimeout bounds connection establishment only. Zero means no
	// timeout for SSH and the client library default for FTP.
	DialTimeout time.Duration

	// Dial opens the TCP connection for SecureShell sessions. Defaults to a
	// net.Dialer honoring DialTimeout.
	Dial func(network, addr string) (net.Conn, error)

	Logger  *zap.Logger
	Metrics *Metrics
}

// Params identifies one session to open.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string
	Mode     SecurityMode
	Passive  bool
}

// Selector opens connections on the backend matching the requested
// SecurityMode.
type Selector struct {
	cfg Config
}

// backend opens an authenticated session for one group of modes.
type backend struct {
	name   string
	accept func(SecurityMode) bool
	dial   func(*Selector, Params) (Connection, error)
}

var backends = []backend{
	{
		name:   "ftp",
		accept: func(m SecurityMode) bool { return m == Plain || m == TLSSecured },
		dial:   (*Selector).dialFTP,
	},
	{
		name:   "sftp",
		accept: func(m SecurityMode) bool { return m == SecureShell },
		dial:   (*Selector).dialSFTP,
	},
}

func NewSelector(cfg Config) *Selector {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Selector{cfg: cfg}
}

// Connect establishes and authenticates a session. Every failure is an
// *Error of KindConnection, except a SecureShell request on a build without
// that backend, which is KindCapabilityUnavailable and performs no I/O.
// Nothing stays open when an error is returned.
func (s *Selector) Connect(p Params) (Connection, error) {
	if p.Port <= 0 {
		p.Port = p.Mode.DefaultPort()
	}
	if p.Mode == SecureShell && !s.cfg.Capabilities.SecureShell {
		err := newError(KindCapabilityUnavailable, "connect", p.Host,
			fmt.Errorf("%s backend is not available in this build", p.Mode))
		s.cfg.Metrics.connection(p.Mode, err)
		return nil, err
	}

	b := findBackend(p.Mode)
	if b == nil {
		err := newError(KindConnection, "connect", p.Host, fmt.Errorf("unsupported security mode %s", p.Mode))
		s.cfg.Metrics.connection(p.Mode, err)
		return nil, err
	}

	log := s.cfg.Logger.With(zap.String("host", p.Host), zap.Int("port", p.Port), zap.Stringer("mode", p.Mode))
	log.Debug("connecting", zap.String("backend", b.name), zap.Bool("passive", p.Passive))

	conn, err := b.dial(s, p)
	if err != nil {
		log.Warn("connect failed", zap.Error(err))
		cerr := newError(KindConnection, "connect", p.Host, err)
		s.cfg.Metrics.connection(p.Mode, cerr)
		return nil, cerr
	}
	conn.env().log = log
	s.cfg.Metrics.connection(p.Mode, nil)

	log.Info("connected", zap.String("user", p.Username))
	return conn, nil
}

func findBackend(m SecurityMode) *backend {
	for i := range backends {
		if backends[i].accept(m) {
			return &backends[i]
		}
	}
	return nil
}

func (s *Selector) dial(network, addr string) (net.Conn, error) {
	if s.cfg.Dial != nil {
		return s.cfg.Dial(network, addr)
	}
	d := &net.Dialer{Timeout: s.cfg.DialTimeout}
	return d.Dial(network, addr)
}

// Disconnect releases the session held by conn. It is a no-op for a nil
// connection and for one already disconnected.
func Disconnect(conn Connection) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		conn.env().log.Debug("disconnect reported an error", zap.Error(err))
		return newError(KindConnection, "disconnect", "", err)
	}
	conn.env().log.Info("disconnected")
	return nil
}
