package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yarkm13/xferkit/internal/logging"
	"github.com/yarkm13/xferkit/remote"
)

const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitIntegrity = 3
)

// session is what a command runs against.
type session struct {
	conn    remote.Connection
	base    string
	verify  bool
	confirm bool
	log     *zap.Logger
	in      io.Reader
	out     io.Writer
}

type command struct {
	name    string
	usage   string
	help    string
	minArgs int
	maxArgs int
	run     func(s *session, args []string) error
}

var commands = []command{
	{"ls", "[path]", "List a remote directory", 0, 1, cmdList},
	{"tree", "[path]", "List a remote directory recursively", 0, 1, cmdTree},
	{"get", "<remote> [local]", "Download a file", 1, 2, cmdGet},
	{"put", "<local> [remote]", "Upload a file", 1, 2, cmdPut},
	{"rm", "<path>", "Delete a remote file", 1, 1, cmdDelete},
	{"mv", "<from> <to>", "Rename a remote file or directory", 2, 2, cmdRename},
	{"mkdir", "<path>", "Create a remote directory", 1, 1, cmdMakeDir},
	{"batch", "<jobfile>", "Run the transfers queued in a job file", 1, 1, cmdBatch},
}

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	cfg, rest, err := loadConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "Missing command; run with -h for usage")
		return exitUsage
	}
	cmd := findCommand(rest[0])
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command %q; run with -h for usage\n", rest[0])
		return exitUsage
	}
	cmdArgs := rest[1:]
	if len(cmdArgs) < cmd.minArgs || len(cmdArgs) > cmd.maxArgs {
		fmt.Fprintf(stderr, "Usage: xferkit %s %s\n", cmd.name, cmd.usage)
		return exitUsage
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogFile}); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logging: %v\n", err)
		return exitError
	}
	defer logging.Sync() //nolint:errcheck
	log := logging.L()

	reg := prometheus.NewRegistry()
	metrics, err := remote.NewMetrics(reg)
	if err != nil {
		log.Error("failed to register metrics", zap.Error(err))
		return exitError
	}
	if cfg.MetricsFile != "" {
		defer func() {
			if err := dumpMetrics(reg, cfg.MetricsFile); err != nil {
				log.Warn("failed to write metrics", zap.String("file", cfg.MetricsFile), zap.Error(err))
			}
		}()
	}

	// Every prompt reads through one buffer so piped answers stay in order.
	lines := bufio.NewReader(stdin)
	conn, base, err := openSession(cfg, metrics, log, stdin, lines, stderr)
	if err != nil {
		log.Error("connect failed", zap.Error(err))
		return exitCode(err)
	}
	defer func() {
		if err := remote.Disconnect(conn); err != nil {
			log.Warn("disconnect failed", zap.Error(err))
		}
	}()

	s := &session{
		conn:    conn,
		base:    base,
		verify:  cfg.Verify,
		confirm: !cfg.AssumeYes,
		log:     log,
		in:      lines,
		out:     stdout,
	}
	if err := cmd.run(s, cmdArgs); err != nil {
		log.Error(cmd.name+" failed", zap.Error(err))
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, remote.ErrIntegrityCheckFailed) {
		return exitIntegrity
	}
	return exitError
}

func openSession(cfg *Config, metrics *remote.Metrics, log *zap.Logger, stdin *os.File, lines *bufio.Reader, prompts io.Writer) (remote.Connection, string, error) {
	t, err := parseTarget(cfg.URL, cfg.Passive)
	if err != nil {
		return nil, "", err
	}
	if t.portIgnored {
		log.Warn("invalid port in URL, using the default",
			zap.Stringer("mode", t.params.Mode), zap.Int("port", t.params.Mode.DefaultPort()))
	}

	creds := &Credentials{username: t.params.Username, password: t.password}
	// Securely clear password when it's no longer needed
	defer creds.Clear()
	if !t.hasPassword && t.params.Username != "" {
		creds.password, err = askPassword(stdin, lines, prompts)
		if err != nil {
			return nil, "", err
		}
	}

	rcfg := remote.Config{
		Capabilities: remote.DiscoverCapabilities(),
		TLSConfig:    tlsConfig(cfg.InsecureTLS),
		DialTimeout:  cfg.DialTimeout,
		Logger:       log,
		Metrics:      metrics,
	}
	if t.params.Mode == remote.SecureShell {
		rcfg.HostKeyCallback, err = hostKeyCallback(cfg.KnownHosts, lines, prompts)
		if err != nil {
			return nil, "", err
		}
	}

	conn, err := newSessionFactory(rcfg).Create(t, creds)
	if err != nil {
		return nil, "", err
	}
	return conn, t.basePath, nil
}

func cmdList(s *session, args []string) error {
	dir := s.base
	if len(args) > 0 {
		dir = remotePath(s.base, args[0])
	}
	entries, err := remote.List(s.conn, dir)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		size := "-"
		if e.Kind == remote.File {
			size = fmt.Sprint(e.Size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, size, e.Name)
	}
	return w.Flush()
}

func cmdTree(s *session, args []string) error {
	root := s.base
	if len(args) > 0 {
		root = remotePath(s.base, args[0])
	}
	fmt.Fprintln(s.out, root)
	return walkRemote(s.conn, root, s.log, func(fullPath string, e remote.DirectoryEntry, depth int) error {
		indent := strings.Repeat("  ", depth+1)
		if e.Kind == remote.Directory {
			_, err := fmt.Fprintf(s.out, "%s%s/\n", indent, e.Name)
			return err
		}
		_, err := fmt.Fprintf(s.out, "%s%s (%d)\n", indent, e.Name, e.Size)
		return err
	})
}

func cmdGet(s *session, args []string) error {
	src := remotePath(s.base, args[0])
	local := ""
	if len(args) > 1 {
		local = args[1]
	}
	dst, err := localTarget(src, local)
	if err != nil {
		return err
	}
	if err := ensureParentDir(dst); err != nil {
		return err
	}
	outcome, err := remote.Download(remote.TransferRequest{Conn: s.conn, LocalPath: dst, RemotePath: src, VerifyIntegrity: s.verify})
	if err != nil {
		return err
	}
	printOutcome(s.out, src, dst, outcome)
	return nil
}

func cmdPut(s *session, args []string) error {
	src := args[0]
	dst := ""
	if len(args) > 1 {
		dst = args[1]
	}
	dst = uploadTarget(s.base, src, dst)
	outcome, err := remote.Upload(remote.TransferRequest{Conn: s.conn, LocalPath: src, RemotePath: dst, VerifyIntegrity: s.verify})
	if err != nil {
		return err
	}
	printOutcome(s.out, src, dst, outcome)
	return nil
}

func printOutcome(out io.Writer, from, to string, o remote.IntegrityOutcome) {
	switch o.Status {
	case remote.Passed:
		fmt.Fprintf(out, "%s -> %s (verified %s)\n", from, to, o.Actual)
	default:
		fmt.Fprintf(out, "%s -> %s (not verified: %s)\n", from, to, o.Reason)
	}
}

func cmdDelete(s *session, args []string) error {
	p := remotePath(s.base, args[0])
	if s.confirm && !promptToContinue(s.in, s.out, fmt.Sprintf("Delete %s?", p)) {
		return nil
	}
	return remote.Delete(s.conn, p)
}

func cmdRename(s *session, args []string) error {
	return remote.Rename(s.conn, remotePath(s.base, args[0]), remotePath(s.base, args[1]))
}

func cmdMakeDir(s *session, args []string) error {
	return remote.MakeDirectory(s.conn, remotePath(s.base, args[0]))
}

func cmdBatch(s *session, args []string) error {
	job, err := parseJobFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading job file: %w", err)
	}
	summary, err := runBatch(s.conn, job, s.base, s.verify, s.log)
	fmt.Fprintf(s.out, "%d done, %d pending, %d flagged (%s)\n",
		summary.Done, summary.Pending, summary.Flagged, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	if summary.Flagged > 0 {
		return fmt.Errorf("%d item(s) flagged: %w", summary.Flagged, remote.ErrIntegrityCheckFailed)
	}
	if summary.Pending > 0 {
		return fmt.Errorf("%d item(s) still pending", summary.Pending)
	}
	return nil
}
