package remote

import (
	"bytes"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gonzalop/ftp"
	"go.uber.org/zap/zaptest"
)

// fakeControl is an in-memory control channel. Digest commands are answered
// by the quote hook when set, otherwise from the stored content.
type fakeControl struct {
	files   map[string][]byte
	listing []string
	quote   func(command, path string) (*ftp.Response, error)
	quoted  []string
	// flipRetrieve corrupts the first byte of every retrieved file.
	flipRetrieve bool
	failStore    error
	quits        int
}

func newFakeControl() *fakeControl {
	return &fakeControl{files: make(map[string][]byte)}
}

func newFakeFTPConn(t *testing.T, ctl *fakeControl) *ftpConn {
	return &ftpConn{
		connEnv: connEnv{log: zaptest.NewLogger(t)},
		ctl:     ctl,
		mode:    Plain,
	}
}

func (f *fakeControl) Login(string, string) error { return nil }

func (f *fakeControl) List(string) ([]*ftp.Entry, error) {
	entries := make([]*ftp.Entry, 0, len(f.listing))
	for _, line := range f.listing {
		entries = append(entries, &ftp.Entry{Raw: line, Name: line})
	}
	return entries, nil
}

func (f *fakeControl) Store(path string, r io.Reader) error {
	if f.failStore != nil {
		return f.failStore
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	f.files[path] = data
	return nil
}

func (f *fakeControl) Retrieve(path string, w io.Writer) error {
	data, ok := f.files[path]
	if !ok {
		return &ftp.ProtocolError{Command: "RETR", Response: "File not found.", Code: 550}
	}
	data = bytes.Clone(data)
	if f.flipRetrieve && len(data) > 0 {
		data[0] ^= 0xff
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeControl) Delete(path string) error {
	if _, ok := f.files[path]; !ok {
		return &ftp.ProtocolError{Command: "DELE", Response: "File not found.", Code: 550}
	}
	delete(f.files, path)
	return nil
}

func (f *fakeControl) Rename(from, to string) error {
	data, ok := f.files[from]
	if !ok {
		return &ftp.ProtocolError{Command: "RNFR", Response: "File not found.", Code: 550}
	}
	delete(f.files, from)
	f.files[to] = data
	return nil
}

func (f *fakeControl) MakeDir(string) error { return nil }

func (f *fakeControl) Quote(command string, args ...string) (*ftp.Response, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	f.quoted = append(f.quoted, command)
	if f.quote != nil {
		return f.quote(command, path)
	}
	data, ok := f.files[path]
	if !ok {
		return &ftp.Response{Code: 550, Message: "File not found."}, nil
	}
	return &ftp.Response{Code: 213, Message: md5Hex(data)}, nil
}

func (f *fakeControl) Quit() error {
	f.quits++
	return nil
}

var _ controlChannel = (*fakeControl)(nil)

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var errBrokenPipe = errors.New("broken pipe")
