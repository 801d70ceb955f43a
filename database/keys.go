package database

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"kvcore/command"
	"kvcore/reply"
)

// execDel removes keys: DEL k1 k2 ...
func execDel(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	deleted := 0
	for _, key := range cmd.Keys() {
		if db.remove(key, now) {
			deleted++
		}
	}
	return reply.MakeIntReply(int64(deleted)), nil
}

// execExists counts live keys, a key listed twice counts twice: EXISTS k1 k2 ...
func execExists(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	result := int64(0)
	for _, key := range cmd.Keys() {
		if _, ok := db.getEntity(key, now); ok {
			result++
		}
	}
	return reply.MakeIntReply(result), nil
}

// execType: TYPE k
func execType(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	e, ok := db.getEntity(cmd.Key(), now)
	if !ok {
		return reply.MakeStatusReply("none"), nil
	}
	return reply.MakeStatusReply(e.value.Kind().String()), nil
}

// execKeys lists every live key in byte order: KEYS
func execKeys(db *DB, _ *command.Command, now time.Time) (reply.Reply, error) {
	return reply.MakeMultiBulkReply(db.liveKeys(now)), nil
}

func (db *DB) liveKeys(now time.Time) [][]byte {
	names := make([]string, 0, db.data.Len())
	db.data.ForEach(func(key string, e *entity) bool {
		if !e.expired(now) {
			names = append(names, key)
		}
		return true
	})
	sort.Strings(names)
	out := make([][]byte, len(names))
	for i, k := range names {
		out[i] = []byte(k)
	}
	return out
}

// execDBSize: DBSIZE
func execDBSize(db *DB, _ *command.Command, now time.Time) (reply.Reply, error) {
	keys, _ := db.countKeys(now)
	return reply.MakeIntReply(int64(keys)), nil
}

// countKeys returns the number of live keys and how many of them carry a deadline.
func (db *DB) countKeys(now time.Time) (keys, expires int) {
	db.data.ForEach(func(_ string, e *entity) bool {
		if e.expired(now) {
			return true
		}
		keys++
		if e.deadline.Load() > 0 {
			expires++
		}
		return true
	})
	return keys, expires
}

// Stats returns the number of live keys and how many carry a deadline.
func (db *DB) Stats() (keys, expires int) {
	return db.countKeys(time.Now())
}

// execFlushDB removes every key: FLUSHDB
func execFlushDB(db *DB, _ *command.Command, _ time.Time) (reply.Reply, error) {
	db.data.Clear()
	return reply.MakeOkReply(), nil
}

// execInfo: INFO
func execInfo(db *DB, _ *command.Command, now time.Time) (reply.Reply, error) {
	keys, expires := db.countKeys(now)
	return reply.MakeBulkReply([]byte(FormatInfo(string(db.variant), db.id, keys, expires))), nil
}

// FormatInfo renders the INFO body shared by every backend.
func FormatInfo(variant, id string, keys, expires int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "variant:%s\n", variant)
	fmt.Fprintf(&b, "backend_id:%s\n", id)
	fmt.Fprintf(&b, "keys:%d\n", keys)
	fmt.Fprintf(&b, "expires:%d", expires)
	return b.String()
}

/* ---- expiration ---- */

// execExpire sets a deadline in seconds: EXPIRE k seconds
func execExpire(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	n, _ := command.ParseInt(cmd.Arg(1))
	return db.expireIn(cmd.Key(), n, time.Second, now), nil
}

// execPExpire: PEXPIRE k milliseconds
func execPExpire(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	n, _ := command.ParseInt(cmd.Arg(1))
	return db.expireIn(cmd.Key(), n, time.Millisecond, now), nil
}

// expireIn returns 1 if key exists. A non-positive ttl deletes the key at once.
func (db *DB) expireIn(key []byte, n int64, unit time.Duration, now time.Time) reply.Reply {
	e, ok := db.getEntity(key, now)
	if !ok {
		return reply.MakeIntReply(0)
	}
	if n <= 0 {
		db.data.Remove(string(key))
		return reply.MakeIntReply(1)
	}
	var ttl time.Duration
	if n > math.MaxInt64/int64(unit) {
		ttl = math.MaxInt64
	} else {
		ttl = time.Duration(n) * unit
	}
	e.deadline.Store(deadlineAfter(now, ttl))
	return reply.MakeIntReply(1)
}

// execPersist removes a deadline: PERSIST k
func execPersist(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	e, ok := db.getEntity(cmd.Key(), now)
	if !ok {
		return reply.MakeIntReply(0), nil
	}
	return reply.MakeBoolReply(e.deadline.Swap(0) > 0), nil
}

// execTTL reports the remaining lifetime in seconds, rounded up: TTL k
func execTTL(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.ttl(cmd.Key(), now, time.Second), nil
}

// execPTTL: PTTL k
func execPTTL(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.ttl(cmd.Key(), now, time.Millisecond), nil
}

func (db *DB) ttl(key []byte, now time.Time, unit time.Duration) reply.Reply {
	e, ok := db.getEntity(key, now)
	if !ok {
		return reply.MakeIntReply(-2)
	}
	d := e.deadline.Load()
	if d == 0 {
		return reply.MakeIntReply(-1)
	}
	remaining := d - now.UnixNano()
	return reply.MakeIntReply((remaining + int64(unit) - 1) / int64(unit))
}

func init() {
	RegisterCommand(command.OpDel, execDel)
	RegisterCommand(command.OpExists, execExists)
	RegisterCommand(command.OpType, execType)
	RegisterCommand(command.OpKeys, execKeys)
	RegisterCommand(command.OpDBSize, execDBSize)
	RegisterCommand(command.OpFlushDB, execFlushDB)
	RegisterCommand(command.OpInfo, execInfo)
	RegisterCommand(command.OpExpire, execExpire)
	RegisterCommand(command.OpPExpire, execPExpire)
	RegisterCommand(command.OpPersist, execPersist)
	RegisterCommand(command.OpTTL, execTTL)
	RegisterCommand(command.OpPTTL, execPTTL)
}
