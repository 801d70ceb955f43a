package database

import (
	"bytes"
	"time"

	"kvcore/command"
	"kvcore/reply"
	"kvcore/value"
)

func (db *DB) getAsHash(key []byte, now time.Time) (*value.Hash, error) {
	h, _, err := getAs[*value.Hash](db, key, now)
	return h, err
}

// execHSet returns the number of new fields: HSET k f1 v1 f2 v2 ...
func execHSet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := getOrInit(db, cmd.Key(), now, func() *value.Hash { return value.NewHash() })
	if err != nil {
		return nil, err
	}
	args := cmd.Args()
	added := 0
	for i := 1; i+1 < len(args); i += 2 {
		if h.Set(args[i], bytes.Clone(args[i+1])) {
			added++
		}
	}
	return reply.MakeIntReply(int64(added)), nil
}

// execHGet: HGET k f
func execHGet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return reply.MakeNilReply(), nil
	}
	v, ok := h.Get(cmd.Arg(1))
	if !ok {
		return reply.MakeNilReply(), nil
	}
	return reply.MakeBulkReply(v), nil
}

// execHMGet: HMGET k f1 f2 ...
func execHMGet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	fields := cmd.Args()[1:]
	result := make([][]byte, len(fields))
	if h != nil {
		for i, f := range fields {
			result[i], _ = h.Get(f)
		}
	}
	return reply.MakeMultiBulkReply(result), nil
}

// execHGetAll returns field, value pairs ordered by field: HGETALL k
func execHGetAll(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return reply.MakeMultiBulkReply([][]byte{}), nil
	}
	return reply.MakeMultiBulkReply(h.Flatten()), nil
}

// execHDel: HDEL k f1 f2 ...
func execHDel(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return reply.MakeIntReply(0), nil
	}
	deleted := 0
	for _, f := range cmd.Args()[1:] {
		if h.Delete(f) {
			deleted++
		}
	}
	db.removeIfEmpty(cmd.Key(), h)
	return reply.MakeIntReply(int64(deleted)), nil
}

// execHLen: HLEN k
func execHLen(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return reply.MakeIntReply(0), nil
	}
	return reply.MakeIntReply(int64(h.Len())), nil
}

// execHExists: HEXISTS k f
func execHExists(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	h, err := db.getAsHash(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return reply.MakeIntReply(0), nil
	}
	_, ok := h.Get(cmd.Arg(1))
	return reply.MakeBoolReply(ok), nil
}

func init() {
	RegisterCommand(command.OpHSet, execHSet)
	RegisterCommand(command.OpHGet, execHGet)
	RegisterCommand(command.OpHMGet, execHMGet)
	RegisterCommand(command.OpHGetAll, execHGetAll)
	RegisterCommand(command.OpHDel, execHDel)
	RegisterCommand(command.OpHLen, execHLen)
	RegisterCommand(command.OpHExists, execHExists)
}
