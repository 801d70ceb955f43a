package database

import (
	"bytes"
	"math"
	"time"

	"kvcore/command"
	"kvcore/reply"
	"kvcore/value"
)

func (db *DB) getAsString(key []byte, now time.Time) (value.Scalar, bool, error) {
	s, e, err := getAs[value.Scalar](db, key, now)
	return s, e != nil, err
}

// execGet: GET k
func execGet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	s, ok, err := db.getAsString(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return reply.MakeNilReply(), nil
	}
	return reply.MakeBulkReply(bytes.Clone(s)), nil
}

// execSet replaces any value and deadline under k: SET k v [EX seconds|PX milliseconds]
func execSet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	opts, err := command.ParseSetOptions(cmd.Args()[2:])
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(opts.TTLMillis) * time.Millisecond
	if opts.TTLMillis > math.MaxInt64/int64(time.Millisecond) {
		ttl = math.MaxInt64
	}
	if err := db.putNew(cmd.Key(), value.Scalar(bytes.Clone(cmd.Arg(1))), now, ttl); err != nil {
		return nil, err
	}
	return reply.MakeOkReply(), nil
}

// execMGet returns one entry per key, nil for absent keys: MGET k1 k2 ...
func execMGet(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	keys := cmd.Keys()
	result := make([][]byte, len(keys))
	for i, key := range keys {
		s, ok, err := db.getAsString(key, now)
		if err != nil {
			return nil, err
		}
		if ok {
			result[i] = bytes.Clone(s)
		}
	}
	return reply.MakeMultiBulkReply(result), nil
}

// execIncr: INCR k
func execIncr(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.incrBy(cmd.Key(), 1, now)
}

// execDecr: DECR k
func execDecr(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	return db.incrBy(cmd.Key(), -1, now)
}

// execIncrBy: INCRBY k delta
func execIncrBy(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	delta, _ := command.ParseInt(cmd.Arg(1))
	return db.incrBy(cmd.Key(), delta, now)
}

// execDecrBy: DECRBY k delta
func execDecrBy(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	delta, _ := command.ParseInt(cmd.Arg(1))
	if delta == math.MinInt64 {
		return nil, reply.ErrIntegerOverflow
	}
	return db.incrBy(cmd.Key(), -delta, now)
}

// incrBy adds delta to the integer under key, treating an absent key as 0.
// The key keeps its deadline.
func (db *DB) incrBy(key []byte, delta int64, now time.Time) (reply.Reply, error) {
	s, e, err := getAs[value.Scalar](db, key, now)
	if err != nil {
		return nil, err
	}
	if e == nil {
		if err := db.putNew(key, value.FromInt(delta), now, 0); err != nil {
			return nil, err
		}
		return reply.MakeIntReply(delta), nil
	}
	n, ok := s.Int()
	if !ok {
		return nil, reply.ErrNotAnInteger
	}
	if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
		return nil, reply.ErrIntegerOverflow
	}
	n += delta
	e.value = value.FromInt(n)
	return reply.MakeIntReply(n), nil
}

func init() {
	RegisterCommand(command.OpGet, execGet)
	RegisterCommand(command.OpSet, execSet)
	RegisterCommand(command.OpMGet, execMGet)
	RegisterCommand(command.OpIncr, execIncr)
	RegisterCommand(command.OpDecr, execDecr)
	RegisterCommand(command.OpIncrBy, execIncrBy)
	RegisterCommand(command.OpDecrBy, execDecrBy)
}
