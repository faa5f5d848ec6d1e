package remote

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// minListFields is the field count of a Unix "ls -l" line:
// perms links owner group size month day time name.
const minListFields = 9

// ParseListLine normalizes one raw LIST line. Lines that do not carry the
// full set of fields are reported with ok == false and must be skipped.
func ParseListLine(line string) (entry DirectoryEntry, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < minListFields {
		return DirectoryEntry{}, false
	}

	entry.Name = strings.Join(fields[minListFields-1:], " ")
	if strings.HasPrefix(fields[0], "d") {
		entry.Kind = Directory
		return entry, true
	}

	entry.Kind = File
	if size, err := strconv.ParseInt(fields[4], 10, 64); err == nil && size >= 0 {
		entry.Size = size
	}
	return entry, true
}

// parseListLines applies ParseListLine to a whole listing, dropping
// malformed lines.
func parseListLines(lines []string, log *zap.Logger) []DirectoryEntry {
	entries := make([]DirectoryEntry, 0, len(lines))
	for _, line := range lines {
		entry, ok := ParseListLine(line)
		if !ok {
			log.Debug("skipping malformed listing line", zap.String("raw", line))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// List returns the entries of the remote directory at path. Individual
// unparseable records are skipped; only whole-call failures are returned.
func List(conn Connection, path string) ([]DirectoryEntry, error) {
	if conn == nil {
		return nil, newError(KindList, "list", path, errNotConnected)
	}
	entries, err := conn.ReadDir(path)
	if err != nil {
		return nil, newError(KindList, "list", path, err)
	}
	conn.env().log.Debug("listed directory", zap.String("path", path), zap.Int("entries", len(entries)))
	return entries, nil
}
