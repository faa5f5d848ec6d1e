package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/yarkm13/xferkit/remote"
)

const (
	statusActive  = -1
	statusPending = 0
	statusDone    = 1
	// statusFlagged marks a transfer whose digests disagreed. It is kept for
	// review and never re-queued automatically.
	statusFlagged = 2
)

const (
	directionGet = "get"
	directionPut = "put"
)

// JobItem is one queued transfer.
type JobItem struct {
	Direction string
	Status    int
	Local     string
	Remote    string
}

// Job is a batch file of transfers run over one connection. Each line reads
// direction:status:local:remote; the remote path may contain colons.
type Job struct {
	Items   []JobItem
	jobFile string
}

type batchSummary struct {
	Done    int
	Pending int
	Flagged int
}

func parseJobFile(filename string) (*Job, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	job := &Job{jobFile: filename}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 4)
		if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
			continue
		}
		direction := strings.ToLower(parts[0])
		if direction != directionGet && direction != directionPut {
			continue
		}
		status := statusPending // all "in progress" statuses will be reset
		switch parts[1] {
		case "1":
			status = statusDone
		case "2":
			status = statusFlagged
		}
		job.Items = append(job.Items, JobItem{
			Direction: direction,
			Status:    status,
			Local:     parts[2],
			Remote:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return job, nil
}

// saveJobFile replaces the job file through a temporary sibling so a crash
// never leaves a truncated queue behind.
func saveJobFile(job *Job) error {
	tmp := job.jobFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, item := range job.Items {
		fmt.Fprintf(w, "%s:%d:%s:%s\n", item.Direction, item.Status, item.Local, item.Remote)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, job.jobFile)
}

// runBatch works through pending items in order. Transport failures leave
// an item pending for the next run; a digest mismatch flags it.
func runBatch(conn remote.Connection, job *Job, basePath string, verify bool, log *zap.Logger) (batchSummary, error) {
	for i := range job.Items {
		item := &job.Items[i]
		if item.Status != statusPending {
			continue
		}
		item.Status = statusActive

		dest := remotePath(basePath, item.Remote)
		log.Info("transferring",
			zap.String("direction", item.Direction),
			zap.String("local", item.Local),
			zap.String("remote", dest))

		err := transferItem(conn, item, dest, verify)
		item.Status = statusAfter(err)
		switch item.Status {
		case statusFlagged:
			log.Error("integrity check failed, item flagged", zap.String("remote", dest), zap.Error(err))
		case statusPending:
			log.Warn("transfer failed, item stays pending", zap.String("remote", dest), zap.Error(err))
		}

		if err := saveJobFile(job); err != nil {
			return summarize(job), fmt.Errorf("failed to save job file: %w", err)
		}
	}
	return summarize(job), nil
}

func transferItem(conn remote.Connection, item *JobItem, remotePath string, verify bool) error {
	req := remote.TransferRequest{
		Conn:            conn,
		LocalPath:       item.Local,
		RemotePath:      remotePath,
		VerifyIntegrity: verify,
	}
	if item.Direction == directionPut {
		_, err := remote.Upload(req)
		return err
	}
	if err := ensureParentDir(item.Local); err != nil {
		return err
	}
	_, err := remote.Download(req)
	return err
}

func statusAfter(err error) int {
	switch {
	case err == nil:
		return statusDone
	case errors.Is(err, remote.ErrIntegrityCheckFailed):
		return statusFlagged
	default:
		return statusPending
	}
}

func summarize(job *Job) batchSummary {
	var s batchSummary
	for _, item := range job.Items {
		switch item.Status {
		case statusDone:
			s.Done++
		case statusFlagged:
			s.Flagged++
		default:
			s.Pending++
		}
	}
	return s
}
