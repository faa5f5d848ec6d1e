package main

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/yarkm13/xferkit/remote"
)

// walkFunc is called for every entry below the walk root. depth is 0 for
// the root's direct children.
type walkFunc func(fullPath string, entry remote.DirectoryEntry, depth int) error

// walkRemote lists base recursively, visiting directories before their
// contents. Every directory is listed at most once.
func walkRemote(conn remote.Connection, base string, log *zap.Logger, fn walkFunc) error {
	// Use map to prevent cycles or revisits
	visited := make(map[string]bool)
	base = path.Clean(base)

	var walk func(current string, depth int) error
	walk = func(current string, depth int) error {
		if visited[current] {
			log.Debug("skipping already visited path", zap.String("path", current))
			return nil
		}
		visited[current] = true

		entries, err := remote.List(conn, current)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			cleaned := path.Join(current, e.Name)
			if !withinBase(cleaned, base) {
				log.Debug("skipping path outside base", zap.String("path", cleaned))
				continue
			}
			if err := fn(cleaned, e, depth); err != nil {
				return err
			}
			if e.Kind == remote.Directory {
				if err := walk(cleaned, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(base, 0)
}

func withinBase(p, base string) bool {
	if base == "/" {
		return strings.HasPrefix(p, "/")
	}
	return p == base || strings.HasPrefix(p, base+"/")
}
