package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yarkm13/xferkit/remote"
)

// target is a parsed session URL such as sftp://alice@files.example.com/srv.
type target struct {
	params   remote.Params
	basePath string
	// password is set only when the URL carried one.
	password    []byte
	hasPassword bool
	// portIgnored reports that the URL port was unusable and the mode
	// default will be used instead.
	portIgnored bool
}

func parseTarget(raw string, passive bool) (*target, error) {
	if raw == "" {
		return nil, errors.New("missing session URL (--url or XFER_URL)")
	}
	cleaned, stripped := stripInvalidPort(raw)
	u, err := url.Parse(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	mode, err := remote.ParseSecurityMode(u.Scheme)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", raw)
	}

	t := &target{
		params: remote.Params{
			Host:    u.Hostname(),
			Mode:    mode,
			Passive: passive,
		},
		basePath:    u.Path,
		portIgnored: stripped,
	}
	if t.basePath == "" {
		t.basePath = "/"
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			t.portIgnored = true
		} else {
			t.params.Port = port
		}
	}
	if u.User != nil {
		t.params.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = []byte(pw)
			t.hasPassword = true
		}
	}
	return t, nil
}

// stripInvalidPort removes a non-numeric port from the URL authority, which
// url.Parse would otherwise reject outright.
func stripInvalidPort(raw string) (string, bool) {
	i := strings.Index(raw, "://")
	if i < 0 {
		return raw, false
	}
	rest := raw[i+3:]
	end := strings.IndexAny(rest, "/?#")
	if end < 0 {
		end = len(rest)
	}
	authority := rest[:end]
	at := strings.LastIndex(authority, "@")
	hostport := authority[at+1:]
	colon := strings.LastIndex(hostport, ":")
	if colon < 0 || strings.HasSuffix(hostport, "]") {
		return raw, false
	}
	if _, err := strconv.Atoi(hostport[colon+1:]); err == nil || hostport[colon+1:] == "" {
		return raw, false
	}
	return raw[:i+3] + authority[:at+1] + hostport[:colon] + rest[end:], true
}

// sessionFactory opens connections for parsed targets.
type sessionFactory struct {
	selector *remote.Selector
}

func newSessionFactory(cfg remote.Config) *sessionFactory {
	return &sessionFactory{selector: remote.NewSelector(cfg)}
}

func (f *sessionFactory) Create(t *target, creds *Credentials) (remote.Connection, error) {
	p := t.params
	if creds != nil {
		p.Password = string(creds.password)
	}
	return f.selector.Connect(p)
}

func tlsConfig(insecure bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // opt-in via --insecure-tls
	}
}
