package remote

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not security
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Checksum is a lowercase hex MD5 digest. The zero value means the digest
// could not be determined.
type Checksum string

// Present reports whether c holds a digest.
func (c Checksum) Present() bool { return c != "" }

func (c Checksum) String() string {
	if c == "" {
		return "<none>"
	}
	return string(c)
}

// OutcomeStatus is the result class of a verification.
type OutcomeStatus int

const (
	Skipped OutcomeStatus = iota
	Passed
	Failed
)

func (s OutcomeStatus) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// IntegrityOutcome is Passed, Failed(Expected, Actual) or Skipped(Reason).
type IntegrityOutcome struct {
	Status   OutcomeStatus
	Expected Checksum
	Actual   Checksum
	Reason   string
}

const (
	reasonNotRequested    = "not requested"
	reasonChannel         = "inherent channel guarantee"
	reasonRemoteMissing   = "remote digest unavailable"
	reasonLocalMissing    = "local digest unavailable"
	remoteDigestCommand   = "XMD5"
	fallbackDigestCommand = "MD5"
)

func skipped(reason string) IntegrityOutcome {
	return IntegrityOutcome{Status: Skipped, Reason: reason}
}

// Compare checks a local digest against a remote one. Either side missing
// yields Skipped.
func Compare(local, remote Checksum) IntegrityOutcome {
	switch {
	case !remote.Present():
		return skipped(reasonRemoteMissing)
	case !local.Present():
		return skipped(reasonLocalMissing)
	case strings.EqualFold(string(local), string(remote)):
		return IntegrityOutcome{Status: Passed, Expected: local, Actual: remote}
	default:
		return IntegrityOutcome{Status: Failed, Expected: local, Actual: remote}
	}
}

// ComputeLocalDigest returns the MD5 digest of the file at path.
func ComputeLocalDigest(path string) (Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", newError(KindIO, "digest", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", newError(KindIO, "digest", path, fmt.Errorf("failed to read file: %w", err))
	}
	return Checksum(hex.EncodeToString(h.Sum(nil))), nil
}

// FetchRemoteDigest asks the server for the digest of path. It never fails:
// a server without a usable digest command yields the absence marker.
func FetchRemoteDigest(conn Connection, path string) Checksum {
	if conn == nil || !conn.SupportsDigest() {
		return ""
	}
	sum := conn.FetchDigest(path)
	if !sum.Present() {
		conn.env().log.Debug("remote digest unavailable", zap.String("path", path))
	}
	return sum
}

// digestReply is one control-channel reply to a digest command. Code is 0
// when the server answered with a bare line and no status code.
type digestReply struct {
	Code int
	Text string
}

// quoteFunc sends one raw command and returns the reply.
type quoteFunc func(command, path string) (digestReply, error)

// negotiateDigest runs XMD5 and, if the server rejects it permanently, MD5.
func negotiateDigest(quote quoteFunc, path string, log *zap.Logger) Checksum {
	reply, err := quote(remoteDigestCommand, path)
	if err != nil {
		log.Debug("digest command failed", zap.String("command", remoteDigestCommand), zap.Error(err))
		return ""
	}
	if isPermanentRejection(reply.Code) {
		log.Debug("digest command rejected, trying fallback",
			zap.String("command", remoteDigestCommand), zap.Int("code", reply.Code))
		reply, err = quote(fallbackDigestCommand, path)
		if err != nil {
			log.Debug("digest command failed", zap.String("command", fallbackDigestCommand), zap.Error(err))
			return ""
		}
	}
	sum := parseDigestReply(reply)
	if !sum.Present() {
		log.Debug("unrecognized digest reply", zap.Int("code", reply.Code), zap.String("text", reply.Text))
	}
	return sum
}

// isPermanentRejection matches 5xx replies: not implemented, unknown
// command, permission denied.
func isPermanentRejection(code int) bool {
	return code >= 500 && code < 600
}

// parseDigestReply accepts a 2xx reply ending in a 32-hex digest, or a bare
// digest line with no status code. The FTP client refuses status-less
// replies, so the bare form only arrives from other control channels.
func parseDigestReply(r digestReply) Checksum {
	text := strings.TrimSpace(r.Text)
	if r.Code == 0 {
		if isHexDigest(text) {
			return Checksum(strings.ToLower(text))
		}
		return ""
	}
	if r.Code < 200 || r.Code >= 300 {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if !isHexDigest(last) {
		return ""
	}
	return Checksum(strings.ToLower(last))
}

func isHexDigest(s string) bool {
	if len(s) != 2*md5.Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
