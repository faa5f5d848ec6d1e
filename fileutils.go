package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func resolveRelativePath(remotePath, basePath, localBasePath string) (string, error) {
	relativePath := strings.TrimPrefix(remotePath, basePath)
	relativePath = strings.TrimPrefix(relativePath, "/")

	localPath := filepath.Join(localBasePath, filepath.FromSlash(relativePath))

	absolutePath, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return absolutePath, nil
}

// remotePath resolves p against the session base path. Absolute paths are
// used as given.
func remotePath(basePath, p string) string {
	if p == "" {
		return basePath
	}
	if strings.HasPrefix(p, "/") {
		return p
	}
	return path.Join(basePath, p)
}

// localTarget picks where a download of remote lands. An empty local or an
// existing directory receives the remote file name.
func localTarget(remote, local string) (string, error) {
	if local == "" {
		local = "."
	}
	if fi, err := os.Stat(local); err == nil && fi.IsDir() {
		return resolveRelativePath(remote, path.Dir(remote), local)
	}
	return filepath.Abs(local)
}

// uploadTarget picks the remote path for an upload of local. A remote
// argument ending in a slash names a directory.
func uploadTarget(basePath, local, remote string) string {
	name := filepath.Base(local)
	if remote == "" {
		return path.Join(basePath, name)
	}
	resolved := remotePath(basePath, remote)
	if strings.HasSuffix(remote, "/") {
		return path.Join(resolved, name)
	}
	return resolved
}

func ensureParentDir(localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func promptToContinue(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/n): ", question)

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))

	return response == "y" || response == "yes"
}
