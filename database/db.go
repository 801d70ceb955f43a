// Package database is the reference in-memory backend.
package database

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kvcore/command"
	"kvcore/config"
	"kvcore/datastruct/dict"
	"kvcore/lib/lock"
	"kvcore/lib/logger"
	"kvcore/reply"
	"kvcore/value"
)

const (
	dataDictSize = 1 << 10
	lockerSize   = 1 << 10
)

// entity is a stored value plus its expiration deadline in unix nanoseconds
// (0 means no deadline). The value is only touched under the key's lock; the
// deadline is atomic because key scans read it without one.
type entity struct {
	value    value.Value
	deadline atomic.Int64
}

func (e *entity) expired(now time.Time) bool {
	d := e.deadline.Load()
	return d > 0 && now.UnixNano() >= d
}

// DB is a key table with per-key locking. It implements backend.Backend.
type DB struct {
	id      string
	variant config.Variant

	data   *dict.ConcurrentDict[*entity]
	locker *lock.Locks

	defaultTTL   time.Duration
	maxKeys      int
	keepEmpty    bool
	expireTicker time.Duration

	closed      atomic.Bool
	stop        chan struct{}
	stopped     sync.WaitGroup
	startExpire sync.Once
}

// NewStandaloneDatabase creates an in-memory key table configured by props.
// It starts the active expiration loop when props.ActiveExpireInterval is set.
func NewStandaloneDatabase(props *config.Properties) *DB {
	db := MakeDatabase(props)
	db.StartExpire()
	return db
}

// MakeDatabase creates a key table without starting active expiration, for
// callers that must load state at historical times first.
func MakeDatabase(props *config.Properties) *DB {
	db := &DB{
		id:           uuid.NewString(),
		variant:      props.Variant,
		data:         dict.MakeConcurrent[*entity](dataDictSize),
		locker:       lock.Make(lockerSize),
		defaultTTL:   time.Duration(props.DefaultKeyTTL),
		maxKeys:      props.MaxKeyCount,
		keepEmpty:    props.KeepEmptyCollections,
		expireTicker: time.Duration(props.ActiveExpireInterval),
		stop:         make(chan struct{}),
	}
	if db.variant == "" {
		db.variant = config.VariantMemory
	}
	return db
}

// StartExpire starts the active expiration loop if an interval is configured.
// Later calls, and calls after Close, do nothing.
func (db *DB) StartExpire() {
	if db.expireTicker <= 0 {
		return
	}
	db.startExpire.Do(func() {
		if db.closed.Load() {
			return
		}
		db.stopped.Add(1)
		go db.expireLoop()
	})
}

// ID identifies this instance in INFO output and logs.
func (db *DB) ID() string {
	return db.id
}

// Exec executes cmd at the current time.
func (db *DB) Exec(cmd *command.Command) (reply.Reply, error) {
	return db.exec(cmd, time.Now(), nil)
}

// ExecAt executes cmd as if the clock read now. Log replay uses it so
// relative expirations resolve to the deadlines of the original run.
func (db *DB) ExecAt(cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.exec(cmd, now, nil)
}

// ExecHooked executes cmd, calling before once the command's key locks are
// held and before anything is changed. If before fails the command is not
// executed and its error is returned.
func (db *DB) ExecHooked(cmd *command.Command, before func(now time.Time) error) (reply.Reply, error) {
	return db.exec(cmd, time.Now(), before)
}

func (db *DB) exec(cmd *command.Command, now time.Time, before func(time.Time) error) (result reply.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("command panicked", "command", cmd.Name(), "error", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("%w executing '%s': %v", reply.ErrInternal, cmd.Name(), r)
		}
	}()

	if db.closed.Load() {
		return nil, fmt.Errorf("%w: database closed", reply.ErrBackendUnavailable)
	}
	executor, ok := cmdTable[cmd.Op()]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", reply.ErrUnknownOperation, cmd.Name())
	}

	if cmd.Op() == command.OpFlushDB {
		db.locker.LockAll()
		defer db.locker.UnLockAll()
	} else if keys := cmd.Keys(); len(keys) > 0 {
		if cmd.IsWrite() {
			db.locker.RWLocks(keys, nil)
			defer db.locker.RWUnLocks(keys, nil)
		} else {
			db.locker.RWLocks(nil, keys)
			defer db.locker.RWUnLocks(nil, keys)
		}
	}

	if before != nil {
		if err := before(now); err != nil {
			return nil, err
		}
	}
	return executor(db, cmd, now)
}

// Close stops background expiration. Later commands fail with BackendUnavailable.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	close(db.stop)
	db.stopped.Wait()
	return nil
}

/* ---- key table access, callers hold the key's lock ---- */

// getEntity returns the live entity under key, reclaiming it if it expired.
func (db *DB) getEntity(key []byte, now time.Time) (*entity, bool) {
	e, ok := db.data.Get(string(key))
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		db.data.RemoveIf(string(key), func(cur *entity) bool { return cur == e })
		return nil, false
	}
	return e, true
}

// getAs returns the value under key as T, or WrongType if it holds another variant.
func getAs[T value.Value](db *DB, key []byte, now time.Time) (v T, e *entity, err error) {
	e, ok := db.getEntity(key, now)
	if !ok {
		return v, nil, nil
	}
	v, ok = e.value.(T)
	if !ok {
		return v, nil, reply.ErrWrongType
	}
	return v, e, nil
}

// getOrInit returns the value under key as T, storing init() first when key is absent.
func getOrInit[T value.Value](db *DB, key []byte, now time.Time, init func() T) (T, error) {
	v, e, err := getAs[T](db, key, now)
	if err != nil || e != nil {
		return v, err
	}
	v = init()
	if err := db.putNew(key, v, now, 0); err != nil {
		return v, err
	}
	return v, nil
}

// admit enforces max_key_count for a key that does not exist yet. Expired
// keys not reclaimed yet do not take a slot.
func (db *DB) admit(now time.Time) error {
	if db.maxKeys <= 0 || db.data.Len() < db.maxKeys {
		return nil
	}
	if live, _ := db.countKeys(now); live >= db.maxKeys {
		return reply.ErrKeyLimitExceeded
	}
	return nil
}

// putNew stores v under key, replacing any previous value and deadline. A zero
// ttl applies the default key TTL.
func (db *DB) putNew(key []byte, v value.Value, now time.Time, ttl time.Duration) error {
	if _, exists := db.getEntity(key, now); !exists {
		if err := db.admit(now); err != nil {
			return err
		}
	}
	e := &entity{value: v}
	if ttl <= 0 {
		ttl = db.defaultTTL
	}
	if ttl > 0 {
		e.deadline.Store(deadlineAfter(now, ttl))
	}
	db.data.Put(string(key), e)
	return nil
}

// removeIfEmpty applies delete-on-empty after an element removal.
func (db *DB) removeIfEmpty(key []byte, v value.Value) {
	if v.Len() == 0 && !db.keepEmpty {
		db.data.Remove(string(key))
	}
}

func (db *DB) remove(key []byte, now time.Time) bool {
	if _, ok := db.getEntity(key, now); !ok {
		return false
	}
	return db.data.Remove(string(key)) == 1
}

// deadlineAfter returns now+ttl in unix nanoseconds, saturating instead of overflowing.
func deadlineAfter(now time.Time, ttl time.Duration) int64 {
	base := now.UnixNano()
	if ttl > 0 && base > (1<<63-1)-int64(ttl) {
		return 1<<63 - 1
	}
	return base + int64(ttl)
}
