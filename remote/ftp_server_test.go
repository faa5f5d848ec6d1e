package remote

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gonzalop/ftp/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testUser     = "alice"
	testPassword = "secret"
)

// startFTPServer serves root over FTP on a loopback port. With a non-nil
// certificate the server also accepts AUTH TLS.
func startFTPServer(t *testing.T, root string, cert *tls.Certificate) (string, int) {
	t.Helper()
	driver, err := server.NewFSDriver(root,
		server.WithAuthenticator(func(user, pass, host string) (string, bool, error) {
			switch {
			case user == testUser && pass == testPassword:
				return root, false, nil
			case user == anonymousUser:
				return root, false, nil
			}
			return "", false, errors.New("login incorrect")
		}),
	)
	require.NoError(t, err)

	opts := []server.Option{server.WithDriver(driver)}
	if cert != nil {
		opts = append(opts, server.WithTLS(&tls.Config{Certificates: []tls.Certificate{*cert}}))
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s, err := server.NewServer(ln.Addr().String(), opts...)
	require.NoError(t, err)

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func selfSignedCert(t *testing.T) *tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func testSelector(t *testing.T) *Selector {
	return NewSelector(Config{
		Capabilities: DiscoverCapabilities(),
		TLSConfig:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
		DialTimeout:  5 * time.Second,
		Logger:       zaptest.NewLogger(t),
	})
}

// populate lays out one 1234-byte file and one subdirectory.
func populate(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin"), make([]byte, 1234), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
}

func TestFTP_ConnectListTransfer(t *testing.T) {
	modes := []struct {
		name    string
		mode    SecurityMode
		passive bool
		tls     bool
	}{
		{"plain passive", Plain, true, false},
		{"plain active", Plain, false, false},
		{"explicit tls", TLSSecured, true, true},
	}
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			root := t.TempDir()
			populate(t, root)
			var cert *tls.Certificate
			if m.tls {
				cert = selfSignedCert(t)
			}
			host, port := startFTPServer(t, root, cert)
			sel := testSelector(t)

			conn, err := sel.Connect(Params{
				Host: host, Port: port, Username: testUser, Password: testPassword,
				Mode: m.mode, Passive: m.passive,
			})
			require.NoError(t, err)
			defer func() { assert.NoError(t, Disconnect(conn)) }()
			assert.Equal(t, m.mode, conn.Mode())

			entries, err := List(conn, "/")
			require.NoError(t, err)
			assert.ElementsMatch(t, []DirectoryEntry{
				{Name: "data.bin", Kind: File, Size: 1234},
				{Name: "sub", Kind: Directory},
			}, entries)

			local := writeTempFile(t, t.TempDir(), "up load.txt", []byte("hello over "+m.name))
			outcome, err := Upload(TransferRequest{Conn: conn, LocalPath: local, RemotePath: "/sub/up load.txt", VerifyIntegrity: true})
			require.NoError(t, err)
			// The test server implements neither XMD5 nor MD5.
			assert.Equal(t, Skipped, outcome.Status)

			entries, err = List(conn, "/sub")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "up load.txt", entries[0].Name)

			back := filepath.Join(t.TempDir(), "back.txt")
			_, err = Download(TransferRequest{Conn: conn, LocalPath: back, RemotePath: "/sub/up load.txt", VerifyIntegrity: true})
			require.NoError(t, err)
			got, err := os.ReadFile(back)
			require.NoError(t, err)
			assert.Equal(t, "hello over "+m.name, string(got))
		})
	}
}

func TestFTP_Mutations(t *testing.T) {
	root := t.TempDir()
	populate(t, root)
	host, port := startFTPServer(t, root, nil)

	conn, err := testSelector(t).Connect(Params{Host: host, Port: port, Username: testUser, Password: testPassword, Mode: Plain, Passive: true})
	require.NoError(t, err)
	defer Disconnect(conn) //nolint:errcheck

	require.NoError(t, MakeDirectory(conn, "/made"))
	assert.DirExists(t, filepath.Join(root, "made"))

	require.NoError(t, Rename(conn, "/data.bin", "/made/renamed.bin"))
	assert.FileExists(t, filepath.Join(root, "made", "renamed.bin"))

	require.NoError(t, Delete(conn, "/made/renamed.bin"))
	assert.NoFileExists(t, filepath.Join(root, "made", "renamed.bin"))

	err = Delete(conn, "/made/renamed.bin")
	assert.ErrorIs(t, err, ErrOperationFailed)
	err = MakeDirectory(conn, "/made")
	assert.ErrorIs(t, err, ErrOperationFailed)
	err = Rename(conn, "/nope", "/still-nope")
	assert.ErrorIs(t, err, ErrOperationFailed)

	_, err = List(conn, "/does/not/exist")
	assert.ErrorIs(t, err, ErrListFailed)
}

func TestFTP_Credentials(t *testing.T) {
	root := t.TempDir()
	host, port := startFTPServer(t, root, nil)
	sel := testSelector(t)

	t.Run("invalid password", func(t *testing.T) {
		conn, err := sel.Connect(Params{Host: host, Port: port, Username: testUser, Password: "wrong", Mode: Plain, Passive: true})
		require.Error(t, err)
		assert.Nil(t, conn)
		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, KindConnection, KindOf(err))
		assert.NoError(t, Disconnect(conn))
	})

	t.Run("invalid password over tls", func(t *testing.T) {
		tlsRoot := t.TempDir()
		tlsHost, tlsPort := startFTPServer(t, tlsRoot, selfSignedCert(t))
		conn, err := sel.Connect(Params{Host: tlsHost, Port: tlsPort, Username: testUser, Password: "wrong", Mode: TLSSecured, Passive: true})
		require.Error(t, err)
		assert.Nil(t, conn)
		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, KindConnection, KindOf(err))
	})

	t.Run("anonymous when password empty", func(t *testing.T) {
		conn, err := sel.Connect(Params{Host: host, Port: port, Username: testUser, Mode: Plain, Passive: true})
		require.NoError(t, err)
		assert.NoError(t, Disconnect(conn))
		assert.NoError(t, Disconnect(conn), "second disconnect is a no-op")
	})

	t.Run("nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().(*net.TCPAddr)
		require.NoError(t, ln.Close())

		_, err = sel.Connect(Params{Host: "127.0.0.1", Port: addr.Port, Mode: Plain, Passive: true})
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestFTP_DisconnectReleasesSession(t *testing.T) {
	root := t.TempDir()
	host, port := startFTPServer(t, root, nil)

	conn, err := testSelector(t).Connect(Params{Host: host, Port: port, Mode: Plain, Passive: true})
	require.NoError(t, err)
	require.NoError(t, Disconnect(conn))

	_, err = List(conn, "/")
	assert.ErrorIs(t, err, ErrListFailed)
}
