package remote

import (
	"io"
	"os"

	"go.uber.org/zap"
)

const (
	directionUpload   = "upload"
	directionDownload = "download"
)

// localReader counts bytes handed to the data channel and remembers a
// failure of the local file, so it is not blamed on the connection.
type localReader struct {
	r   io.Reader
	n   int64
	err error
}

func (l *localReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if err != nil && err != io.EOF {
		l.err = err
	}
	return n, err
}

type localWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (l *localWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	l.n += int64(n)
	if err != nil {
		l.err = err
	}
	return n, err
}

// Upload stores the local file at req.RemotePath, replacing any existing
// remote file. When verification is requested and the backend can report
// remote digests, both digests are compared after the transfer; a mismatch
// returns *IntegrityError and leaves the remote file in place.
func Upload(req TransferRequest) (IntegrityOutcome, error) {
	conn := req.Conn
	if conn == nil {
		return skipped(reasonNotRequested), newError(KindConnection, directionUpload, req.RemotePath, errNotConnected)
	}
	e := conn.env()
	log := e.log.With(zap.String("local", req.LocalPath), zap.String("remote", req.RemotePath))

	n, err := storeFile(conn, req.LocalPath, req.RemotePath)
	e.metrics.transfer(directionUpload, conn.Mode(), n, err)
	if err != nil {
		log.Warn("upload failed", zap.Error(err))
		return skipped(reasonNotRequested), err
	}
	log.Info("uploaded", zap.Int64("bytes", n))

	if !req.VerifyIntegrity {
		return skipped(reasonNotRequested), nil
	}
	if !conn.SupportsDigest() {
		return verified(conn, skipped(reasonChannel), req.RemotePath)
	}

	local, err := ComputeLocalDigest(req.LocalPath)
	if err != nil {
		return skipped(reasonLocalMissing), err
	}
	remote := FetchRemoteDigest(conn, req.RemotePath)
	return verified(conn, Compare(local, remote), req.RemotePath)
}

func storeFile(conn Connection, localPath, remotePath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, newError(KindIO, directionUpload, localPath, err)
	}
	defer f.Close()

	lr := &localReader{r: f}
	if err := conn.Store(remotePath, lr); err != nil {
		if lr.err != nil {
			return lr.n, newError(KindIO, directionUpload, localPath, lr.err)
		}
		return lr.n, newError(KindConnection, directionUpload, remotePath, err)
	}
	return lr.n, nil
}

// Download retrieves req.RemotePath into the local file, truncating it. When
// verification is requested and supported, the remote digest is fetched
// before the transfer so a server without digest commands costs nothing
// extra. A failed transfer may leave a partial local file behind.
func Download(req TransferRequest) (IntegrityOutcome, error) {
	conn := req.Conn
	if conn == nil {
		return skipped(reasonNotRequested), newError(KindConnection, directionDownload, req.RemotePath, errNotConnected)
	}
	e := conn.env()
	log := e.log.With(zap.String("remote", req.RemotePath), zap.String("local", req.LocalPath))

	var expected Checksum
	verify := req.VerifyIntegrity && conn.SupportsDigest()
	if verify {
		expected = FetchRemoteDigest(conn, req.RemotePath)
		if !expected.Present() {
			log.Warn("remote digest unavailable, integrity check will be skipped")
		}
	}

	n, err := retrieveFile(conn, req.RemotePath, req.LocalPath)
	e.metrics.transfer(directionDownload, conn.Mode(), n, err)
	if err != nil {
		log.Warn("download failed", zap.Error(err))
		return skipped(reasonNotRequested), err
	}
	log.Info("downloaded", zap.Int64("bytes", n))

	switch {
	case !req.VerifyIntegrity:
		return skipped(reasonNotRequested), nil
	case !verify:
		return verified(conn, skipped(reasonChannel), req.LocalPath)
	case !expected.Present():
		return verified(conn, skipped(reasonRemoteMissing), req.LocalPath)
	}

	actual, err := ComputeLocalDigest(req.LocalPath)
	if err != nil {
		return skipped(reasonLocalMissing), err
	}
	outcome := Compare(actual, expected)
	// Compare reports from the local side; a download expects the remote one.
	outcome.Expected, outcome.Actual = expected, actual
	return verified(conn, outcome, req.LocalPath)
}

func retrieveFile(conn Connection, remotePath, localPath string) (int64, error) {
	f, err := os.Create(localPath)
	if err != nil {
		return 0, newError(KindIO, directionDownload, localPath, err)
	}

	lw := &localWriter{w: f}
	if err := conn.Retrieve(remotePath, lw); err != nil {
		_ = f.Close()
		if lw.err != nil {
			return lw.n, newError(KindIO, directionDownload, localPath, lw.err)
		}
		return lw.n, newError(KindConnection, directionDownload, remotePath, err)
	}
	if err := f.Close(); err != nil {
		return lw.n, newError(KindIO, directionDownload, localPath, err)
	}
	return lw.n, nil
}

// verified logs and counts the outcome and converts Failed into an error.
func verified(conn Connection, o IntegrityOutcome, path string) (IntegrityOutcome, error) {
	e := conn.env()
	e.metrics.integrityOutcome(o)
	switch o.Status {
	case Passed:
		e.log.Info("integrity check passed", zap.String("path", path), zap.Stringer("digest", o.Actual))
		return o, nil
	case Failed:
		e.log.Error("integrity check failed", zap.String("path", path),
			zap.Stringer("expected", o.Expected), zap.Stringer("actual", o.Actual))
		return o, &IntegrityError{Path: path, Expected: o.Expected, Actual: o.Actual}
	default:
		e.log.Warn("integrity check skipped", zap.String("path", path), zap.String("reason", o.Reason))
		return o, nil
	}
}
