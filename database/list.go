package database

import (
	"bytes"
	"time"

	"kvcore/command"
	"kvcore/reply"
	"kvcore/value"
)

func (db *DB) getAsList(key []byte, now time.Time) (*value.List, error) {
	l, _, err := getAs[*value.List](db, key, now)
	return l, err
}

// execLPush inserts values at the head in argument order: LPUSH k v1 v2 ...
func execLPush(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.push(cmd, now, (*value.List).PushFront)
}

// execRPush: RPUSH k v1 v2 ...
func execRPush(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.push(cmd, now, (*value.List).PushBack)
}

func (db *DB) push(cmd *command.Command, now time.Time, insert func(*value.List, []byte)) (reply.Reply, error) {
	l, err := getOrInit(db, cmd.Key(), now, func() *value.List { return value.NewList() })
	if err != nil {
		return nil, err
	}
	for _, v := range cmd.Args()[1:] {
		insert(l, bytes.Clone(v))
	}
	return reply.MakeIntReply(int64(l.Len())), nil
}

// execLPop: LPOP k
func execLPop(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.pop(cmd.Key(), now, (*value.List).PopFront)
}

// execRPop: RPOP k
func execRPop(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.pop(cmd.Key(), now, (*value.List).PopBack)
}

func (db *DB) pop(key []byte, now time.Time, take func(*value.List) []byte) (reply.Reply, error) {
	l, err := db.getAsList(key, now)
	if err != nil {
		return nil, err
	}
	if l == nil || l.Len() == 0 {
		return reply.MakeNilReply(), nil
	}
	v := take(l)
	db.removeIfEmpty(key, l)
	return reply.MakeBulkReply(v), nil
}

// execLLen: LLEN k
func execLLen(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	l, err := db.getAsList(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return reply.MakeIntReply(0), nil
	}
	return reply.MakeIntReply(int64(l.Len())), nil
}

// execLRange: LRANGE k start stop
func execLRange(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	start, _ := command.ParseInt(cmd.Arg(1))
	stop, _ := command.ParseInt(cmd.Arg(2))
	l, err := db.getAsList(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return reply.MakeMultiBulkReply([][]byte{}), nil
	}
	return reply.MakeMultiBulkReply(l.Range(start, stop)), nil
}

// execLIndex: LINDEX k index
func execLIndex(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	i, _ := command.ParseInt(cmd.Arg(1))
	l, err := db.getAsList(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return reply.MakeNilReply(), nil
	}
	size := int64(l.Len())
	if i < 0 {
		i += size
	}
	if i < 0 || i >= size {
		return reply.MakeNilReply(), nil
	}
	return reply.MakeBulkReply(bytes.Clone(l.Index(int(i)))), nil
}

func init() {
	RegisterCommand(command.OpLPush, execLPush)
	RegisterCommand(command.OpRPush, execRPush)
	RegisterCommand(command.OpLPop, execLPop)
	RegisterCommand(command.OpRPop, execRPop)
	RegisterCommand(command.OpLLen, execLLen)
	RegisterCommand(command.OpLRange, execLRange)
	RegisterCommand(command.OpLIndex, execLIndex)
}
