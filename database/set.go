package database

import (
	"bytes"
	"fmt"
	"time"

	"kvcore/command"
	"kvcore/reply"
	"kvcore/value"
)

func (db *DB) getAsSet(key []byte, now time.Time) (*value.Set, error) {
	s, _, err := getAs[*value.Set](db, key, now)
	return s, err
}

// execSAdd: SADD k m1 m2 ...
func execSAdd(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	set, err := getOrInit(db, cmd.Key(), now, func() *value.Set { return value.NewSet() })
	if err != nil {
		return nil, err
	}
	added := 0
	for _, m := range cmd.Args()[1:] {
		if set.Add(m) {
			added++
		}
	}
	return reply.MakeIntReply(int64(added)), nil
}

// execSRem: SREM k m1 m2 ...
func execSRem(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	set, err := db.getAsSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return reply.MakeIntReply(0), nil
	}
	removed := 0
	for _, m := range cmd.Args()[1:] {
		if set.Remove(m) {
			removed++
		}
	}
	db.removeIfEmpty(cmd.Key(), set)
	return reply.MakeIntReply(int64(removed)), nil
}

// execSMembers returns members in byte order: SMEMBERS k
func execSMembers(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	set, err := db.getAsSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return reply.MakeMultiBulkReply([][]byte{}), nil
	}
	return reply.MakeMultiBulkReply(set.Members()), nil
}

// execSCard: SCARD k
func execSCard(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	set, err := db.getAsSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return reply.MakeIntReply(0), nil
	}
	return reply.MakeIntReply(int64(set.Len())), nil
}

// execSIsMember: SISMEMBER k m
func execSIsMember(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	set, err := db.getAsSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	return reply.MakeBoolReply(set != nil && set.Has(cmd.Arg(1))), nil
}

// diff computes first minus the rest. Absent keys are empty sets; any
// non-set key fails the whole command.
func (db *DB) diff(keys [][]byte, now time.Time) (*value.Set, error) {
	sets := make([]*value.Set, len(keys))
	for i, key := range keys {
		set, err := db.getAsSet(key, now)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}
	return sets[0].Diff(sets[1:]...), nil
}

// execSDiff: SDIFF k1 k2 ...
func execSDiff(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	result, err := db.diff(cmd.Keys(), now)
	if err != nil {
		return nil, err
	}
	return reply.MakeMultiBulkReply(result.Members()), nil
}

// execSDiffStore replaces dest with the difference: SDIFFSTORE dest k1 k2 ...
func execSDiffStore(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	result, err := db.diff(cmd.Keys()[1:], now)
	if err != nil {
		return nil, err
	}
	return db.storeSet(cmd.Key(), result, now)
}

// storeSet replaces dest with set, or removes dest when set is empty, and
// returns the stored cardinality.
func (db *DB) storeSet(dest []byte, set *value.Set, now time.Time) (reply.Reply, error) {
	if set.Len() == 0 {
		db.remove(dest, now)
		return reply.MakeIntReply(0), nil
	}
	if err := db.putNew(dest, set, now, 0); err != nil {
		return nil, err
	}
	return reply.MakeIntReply(int64(set.Len())), nil
}

// StoreMembers is the write half of SDIFFSTORE for callers that computed the
// difference elsewhere. It locks dest and replaces it like SDIFFSTORE does.
func (db *DB) StoreMembers(dest []byte, members [][]byte) (reply.Reply, error) {
	if db.closed.Load() {
		return nil, fmt.Errorf("%w: database closed", reply.ErrBackendUnavailable)
	}
	db.locker.Lock(dest)
	defer db.locker.UnLock(dest)

	set := value.NewSet()
	for _, m := range members {
		set.Add(bytes.Clone(m))
	}
	return db.storeSet(dest, set, time.Now())
}

func init() {
	RegisterCommand(command.OpSAdd, execSAdd)
	RegisterCommand(command.OpSRem, execSRem)
	RegisterCommand(command.OpSMembers, execSMembers)
	RegisterCommand(command.OpSCard, execSCard)
	RegisterCommand(command.OpSIsMember, execSIsMember)
	RegisterCommand(command.OpSDiff, execSDiff)
	RegisterCommand(command.OpSDiffStore, execSDiffStore)
}
