package remote

import (
	"go.uber.org/zap"
)

// Delete removes the remote file at path.
func Delete(conn Connection, path string) error {
	if conn == nil {
		return newError(KindOperation, "delete", path, errNotConnected)
	}
	return mutated(conn, "delete", path, conn.Delete(path))
}

// Rename moves the remote entry from one path to another.
func Rename(conn Connection, from, to string) error {
	if conn == nil {
		return newError(KindOperation, "rename", from, errNotConnected)
	}
	if err := conn.Rename(from, to); err != nil {
		return mutated(conn, "rename", from, err)
	}
	conn.env().log.Info("renamed", zap.String("from", from), zap.String("to", to))
	return nil
}

// MakeDirectory creates the remote directory at path.
func MakeDirectory(conn Connection, path string) error {
	if conn == nil {
		return newError(KindOperation, "mkdir", path, errNotConnected)
	}
	return mutated(conn, "mkdir", path, conn.MakeDir(path))
}

func mutated(conn Connection, op, path string, err error) error {
	log := conn.env().log
	if err != nil {
		log.Warn(op+" failed", zap.String("path", path), zap.Error(err))
		return newError(KindOperation, op, path, err)
	}
	log.Info(op, zap.String("path", path))
	return nil
}
