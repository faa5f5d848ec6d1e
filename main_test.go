package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Usage(t *testing.T) {
	t.Setenv("XFER_URL", "")
	var out, errOut bytes.Buffer

	assert.Equal(t, exitOK, run([]string{"-h"}, os.Stdin, &out, &errOut))
	assert.Contains(t, errOut.String(), "batch")

	assert.Equal(t, exitUsage, run(nil, os.Stdin, &out, &errOut))
	assert.Equal(t, exitUsage, run([]string{"fetch"}, os.Stdin, &out, &errOut))
	assert.Equal(t, exitUsage, run([]string{"mv", "only-one"}, os.Stdin, &out, &errOut))
	assert.Equal(t, exitUsage, run([]string{"-dial-timeout", "soon", "ls"}, os.Stdin, &out, &errOut))
	assert.Equal(t, exitError, run([]string{"ls"}, os.Stdin, &out, &errOut), "no URL configured")
}

func TestRun_CommandsAgainstServer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))
	p := startFTP(t, root)
	url := fmt.Sprintf("ftp://%s:%d/", p.Host, p.Port)
	metricsFile := filepath.Join(t.TempDir(), "metrics.prom")
	work := t.TempDir()

	exec := func(args ...string) (int, string) {
		var out, errOut bytes.Buffer
		base := []string{"-url", url, "-log-level", "error", "-metrics-file", metricsFile, "-y"}
		code := run(append(base, args...), os.Stdin, &out, &errOut)
		return code, out.String()
	}

	code, out := exec("ls")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "hello.txt")

	code, _ = exec("get", "hello.txt", work)
	require.Equal(t, exitOK, code)
	got, err := os.ReadFile(filepath.Join(work, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	code, _ = exec("mkdir", "inbox")
	require.Equal(t, exitOK, code)
	code, _ = exec("put", filepath.Join(work, "hello.txt"), "inbox/")
	require.Equal(t, exitOK, code)
	assert.FileExists(t, filepath.Join(root, "inbox", "hello.txt"))

	code, _ = exec("mv", "inbox/hello.txt", "inbox/bye.txt")
	require.Equal(t, exitOK, code)
	code, out = exec("tree")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "inbox/")
	assert.Contains(t, out, "bye.txt (2)")

	code, _ = exec("rm", "inbox/bye.txt")
	require.Equal(t, exitOK, code)
	assert.NoFileExists(t, filepath.Join(root, "inbox", "bye.txt"))

	code, _ = exec("rm", "inbox/bye.txt")
	assert.Equal(t, exitError, code)

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "xferkit_connections_total")
}

func TestRun_ConfigFromEnvironment(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "env.txt"), []byte("x"), 0o644))
	p := startFTP(t, root)
	logFile := filepath.Join(t.TempDir(), "xferkit.log")

	t.Setenv("XFER_URL", fmt.Sprintf("ftp://%s:%d/", p.Host, p.Port))
	t.Setenv("XFER_LOG_LEVEL", "debug")
	t.Setenv("XFER_LOG_FILE", logFile)
	t.Setenv("XFER_DIAL_TIMEOUT", "5s")

	cfg, _, err := loadConfig(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.True(t, cfg.Verify)

	var out, errOut bytes.Buffer
	require.Equal(t, exitOK, run([]string{"ls"}, os.Stdin, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "env.txt")

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotEmpty(t, logged)

	t.Setenv("XFER_VERIFY", "false")
	cfg, _, err = loadConfig([]string{"-verify"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, cfg.Verify, "flags override the environment")
}

func TestDumpMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "demo_total", Help: "Demo counter"})
	reg.MustRegister(c)
	c.Add(3)

	p := filepath.Join(t.TempDir(), "out.prom")
	require.NoError(t, dumpMetrics(reg, p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# HELP demo_total Demo counter")
	assert.Contains(t, string(data), "demo_total 3")
}
