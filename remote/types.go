package remote

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// SecurityMode selects the backend transport.
type SecurityMode int

const (
	Plain SecurityMode = iota
	TLSSecured
	SecureShell
)

func (m SecurityMode) String() string {
	switch m {
	case Plain:
		return "ftp"
	case TLSSecured:
		return "ftps"
	case SecureShell:
		return "sftp"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultPort is the port used when a connect request leaves it unset.
func (m SecurityMode) DefaultPort() int {
	if m == SecureShell {
		return 22
	}
	return 21
}

// ParseSecurityMode accepts URL schemes as well as the labels used by the
// session dialogs ("None", "FTP", "FTPS (SSL/TLS)", "SFTP (SSH)").
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "ftp", "plain":
		return Plain, nil
	case "ftps", "ftps (ssl/tls)", "tls", "ftpes":
		return TLSSecured, nil
	case "sftp", "sftp (ssh)", "ssh":
		return SecureShell, nil
	}
	return 0, newError(KindConnection, "parse mode", "", fmt.Errorf("unsupported security type %q", s))
}

// EntryKind tells files and directories apart.
type EntryKind int

const (
	File EntryKind = iota
	Directory
)

func (k EntryKind) String() string {
	if k == Directory {
		return "dir"
	}
	return "file"
}

// DirectoryEntry is one normalized listing record. Size is only meaningful
// for files and is 0 for directories.
type DirectoryEntry struct {
	Name string
	Kind EntryKind
	Size int64
}

// Connection is an authenticated session with one backend. Each method is a
// single capability dispatched to the backend's native command; callers use
// the package-level operations (List, Upload, ...) which translate backend
// errors into *Error values.
//
// A Connection is not safe for concurrent use: the caller serializes calls.
type Connection interface {
	Mode() SecurityMode
	ReadDir(path string) ([]DirectoryEntry, error)
	Store(remotePath string, r io.Reader) error
	Retrieve(remotePath string, w io.Writer) error
	Delete(path string) error
	Rename(from, to string) error
	MakeDir(path string) error
	// SupportsDigest reports whether FetchDigest can ever return a digest.
	SupportsDigest() bool
	FetchDigest(path string) Checksum
	Close() error

	env() *connEnv
}

// connEnv carries the ambient collaborators every backend shares.
type connEnv struct {
	log     *zap.Logger
	metrics *Metrics
}

func (e *connEnv) env() *connEnv { return e }

// TransferRequest describes one upload or download.
type TransferRequest struct {
	Conn            Connection
	LocalPath       string
	RemotePath      string
	VerifyIntegrity bool
}
