// Package aof is a backend that logs every write command to an append-only
// file and rebuilds its key table from that file on open.
package aof

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"kvcore/command"
	"kvcore/config"
	"kvcore/database"
	"kvcore/lib/logger"
	"kvcore/reply"
)

// AofDatabase executes commands on an in-memory database and appends each
// write to the log while the write's key locks are held, so the log order of
// any one key matches its execution order.
type AofDatabase struct {
	db  *database.DB
	log *logWriter
	seq atomic.Uint64

	// mu excludes Close from in-flight commands
	mu     sync.RWMutex
	closed bool
}

// MakeAofDatabase replays props.AppendFilename into a fresh database, cuts off
// any corrupt tail and opens the file for appending.
func MakeAofDatabase(props *config.Properties) (*AofDatabase, error) {
	path := props.AppendFilename
	db := database.MakeDatabase(props)
	log := logger.With("backend_id", db.ID(), "path", path)

	lastSeq, valid, err := replay(path, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open append log: %w", err)
	}
	if info, err := file.Stat(); err == nil && info.Size() > valid {
		log.Warn("truncating append log to last intact record", "size", info.Size(), "valid", valid)
		if err := file.Truncate(valid); err != nil {
			_ = file.Close()
			_ = db.Close()
			return nil, fmt.Errorf("failed to truncate append log: %w", err)
		}
	}

	h := &AofDatabase{
		db: db,
		log: newLogWriter(file,
			props.AppendBufferBytes,
			props.AppendQueueSize,
			time.Duration(props.AppendEnqueueTimeout),
			time.Duration(props.AppendFsyncInterval)),
	}
	h.seq.Store(lastSeq)
	go h.log.run()
	// deadlines are checked against the real clock only once replay is done
	db.StartExpire()
	return h, nil
}

// Exec executes cmd. A write that cannot be logged is not executed and fails
// with BackendUnavailable.
func (h *AofDatabase) Exec(cmd *command.Command) (reply.Reply, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, fmt.Errorf("%w: append log closed", reply.ErrBackendUnavailable)
	}
	if !cmd.IsWrite() {
		return h.db.Exec(cmd)
	}
	return h.db.ExecHooked(cmd, func(now time.Time) error {
		return h.log.append(encodeRecord(h.seq.Add(1), now, cmd.CmdLine()))
	})
}

// Close waits for in-flight commands, flushes and syncs the log, and closes
// the database.
func (h *AofDatabase) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	return errors.Join(h.log.close(), h.db.Close())
}
