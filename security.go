package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

type Credentials struct {
	username string
	password []byte
}

func (c *Credentials) Clear() {
	secureWipe(c.password)
	c.password = nil
}

// secureWipe safely clears sensitive data from memory
// It overwrites the slice with zeros
func secureWipe(data []byte) {
	if data == nil {
		return
	}
	for i := range data {
		data[i] = 0
	}
}

const maxPasswordLen = 65536

// askPassword reads a password from the terminal without echoing it. When
// stdin is not a terminal a single line is taken from lines, which later
// prompts must share so buffered input is not lost.
// Returns the password as a byte slice to allow secure handling in memory
func askPassword(in *os.File, lines *bufio.Reader, out io.Writer) ([]byte, error) {
	fmt.Fprint(out, "Enter password: ")

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := lines.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading password: %w", err)
		}
		fmt.Fprintln(out)
		return trimLineEnd(line), nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set terminal to raw mode: %w", err)
	}
	defer term.Restore(fd, oldState) //nolint:errcheck

	var password []byte
	buffer := make([]byte, 4096)
	for {
		n, err := in.Read(buffer)
		if err != nil {
			secureWipe(password)
			return nil, fmt.Errorf("error reading password: %w", err)
		}
		if n > 0 && (buffer[n-1] == '\r' || buffer[n-1] == '\n') {
			password = append(password, buffer[:n-1]...)
			break
		}
		password = append(password, buffer[:n]...)
		if len(password) > maxPasswordLen {
			password = password[:maxPasswordLen]
			break
		}
	}
	secureWipe(buffer)

	fmt.Fprint(out, "\r\n")
	return password, nil
}

func trimLineEnd(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// hostKeyPrompt asks the user to accept an unknown host key, remembering
// accepted fingerprints for the lifetime of the process.
type hostKeyPrompt struct {
	in  *bufio.Reader
	out io.Writer

	mu       sync.Mutex
	accepted map[string]string
}

func newHostKeyPrompt(in io.Reader, out io.Writer) *hostKeyPrompt {
	return &hostKeyPrompt{
		in:       bufio.NewReader(in),
		out:      out,
		accepted: make(map[string]string),
	}
}

func (p *hostKeyPrompt) Check(hostname string, _ net.Addr, key ssh.PublicKey) error {
	fingerprint := ssh.FingerprintSHA256(key)

	p.mu.Lock()
	stored, exists := p.accepted[hostname]
	p.mu.Unlock()
	if exists && stored == fingerprint {
		return nil
	}

	if err := p.confirm(hostname, key); err != nil {
		return err
	}
	p.mu.Lock()
	p.accepted[hostname] = fingerprint
	p.mu.Unlock()
	return nil
}

func (p *hostKeyPrompt) confirm(hostname string, key ssh.PublicKey) error {
	fmt.Fprintf(p.out, "\nThe authenticity of host '%s' can't be established.\n", hostname)
	fmt.Fprintf(p.out, "%s key fingerprint is %s\n", key.Type(), ssh.FingerprintSHA256(key))
	fmt.Fprint(p.out, "Are you sure you want to continue connecting (yes/no)? ")

	response, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	if response == "yes" || response == "y" {
		return nil
	}
	return errors.New("host key verification rejected by user")
}

// hostKeyCallback verifies SSH host keys. With a known_hosts path, known keys
// are checked against the file, mismatches are refused and newly accepted
// keys are appended to it. Without one, acceptance lasts for this process.
func hostKeyCallback(path string, in io.Reader, out io.Writer) (ssh.HostKeyCallback, error) {
	prompt := newHostKeyPrompt(in, out)
	if path == "" {
		return prompt.Check, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open known hosts: %w", err)
	}
	_ = f.Close()

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	var mu sync.Mutex
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		mu.Lock()
		defer mu.Unlock()

		err := check(hostname, remote, key)
		var kerr *knownhosts.KeyError
		if !errors.As(err, &kerr) || len(kerr.Want) > 0 {
			// Known key, changed key or revoked key.
			return err
		}
		if err := prompt.confirm(hostname, key); err != nil {
			return err
		}
		if err := appendKnownHost(path, hostname, remote, key); err != nil {
			return err
		}
		// Reload so later connections in this process see the new line.
		if reloaded, err := knownhosts.New(path); err == nil {
			check = reloaded
		}
		return nil
	}, nil
}

// appendKnownHost records key under both the dialed name and the remote
// address, since knownhosts checks each of them.
func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	names := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if addr := knownhosts.Normalize(remote.String()); addr != names[0] {
			names = append(names, addr)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to update known hosts: %w", err)
	}
	line := knownhosts.Line(names, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to update known hosts: %w", err)
	}
	return f.Close()
}
