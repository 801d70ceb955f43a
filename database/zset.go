package database

import (
	"bytes"
	"time"

	"kvcore/command"
	"kvcore/reply"
	"kvcore/value"
)

func (db *DB) getAsSortedSet(key []byte, now time.Time) (*value.SortedSet, error) {
	z, _, err := getAs[*value.SortedSet](db, key, now)
	return z, err
}

// execZAdd returns the number of new members: ZADD k score1 m1 score2 m2 ...
func execZAdd(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	args := cmd.Args()
	// scores were validated at construction; parse them before creating the key
	scores := make([]float64, 0, (len(args)-1)/2)
	for i := 1; i+1 < len(args); i += 2 {
		score, err := command.ParseFloat(args[i])
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	z, err := getOrInit(db, cmd.Key(), now, func() *value.SortedSet { return value.NewSortedSet() })
	if err != nil {
		return nil, err
	}
	added := 0
	for j, score := range scores {
		if z.Add(bytes.Clone(args[2+2*j]), score) {
			added++
		}
	}
	return reply.MakeIntReply(int64(added)), nil
}

// execZScore: ZSCORE k m
func execZScore(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeNilReply(), nil
	}
	score, ok := z.Score(cmd.Arg(1))
	if !ok {
		return reply.MakeNilReply(), nil
	}
	return reply.MakeBulkReply(value.FormatScore(score)), nil
}

// execZCard: ZCARD k
func execZCard(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeIntReply(0), nil
	}
	return reply.MakeIntReply(int64(z.Len())), nil
}

// execZRem: ZREM k m1 m2 ...
func execZRem(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeIntReply(0), nil
	}
	removed := 0
	for _, m := range cmd.Args()[1:] {
		if z.Remove(m) {
			removed++
		}
	}
	db.removeIfEmpty(cmd.Key(), z)
	return reply.MakeIntReply(int64(removed)), nil
}

// execZRank: ZRANK k m
func execZRank(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeNilReply(), nil
	}
	rank, ok := z.Rank(cmd.Arg(1))
	if !ok {
		return reply.MakeNilReply(), nil
	}
	return reply.MakeIntReply(int64(rank)), nil
}

// execZRange: ZRANGE k start stop [WITHSCORES]
func execZRange(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	start, _ := command.ParseInt(cmd.Arg(1))
	stop, _ := command.ParseInt(cmd.Arg(2))
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeMultiBulkReply([][]byte{}), nil
	}
	return elementsReply(z.Range(start, stop), withScores(cmd)), nil
}

// execZRangeByScore: ZRANGEBYSCORE k min max [WITHSCORES]
func execZRangeByScore(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error) {
	min, _ := command.ParseFloat(cmd.Arg(1))
	max, _ := command.ParseFloat(cmd.Arg(2))
	z, err := db.getAsSortedSet(cmd.Key(), now)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return reply.MakeMultiBulkReply([][]byte{}), nil
	}
	return elementsReply(z.RangeByScore(min, max), withScores(cmd)), nil
}

func withScores(cmd *command.Command) bool {
	return cmd.NumArgs() == 4
}

// elementsReply flattens elements into members, or member, score pairs.
func elementsReply(elements []value.Element, scores bool) reply.Reply {
	size := len(elements)
	if scores {
		size *= 2
	}
	result := make([][]byte, 0, size)
	for _, e := range elements {
		result = append(result, e.Member)
		if scores {
			result = append(result, value.FormatScore(e.Score))
		}
	}
	return reply.MakeMultiBulkReply(result)
}

func init() {
	RegisterCommand(command.OpZAdd, execZAdd)
	RegisterCommand(command.OpZScore, execZScore)
	RegisterCommand(command.OpZCard, execZCard)
	RegisterCommand(command.OpZRem, execZRem)
	RegisterCommand(command.OpZRank, execZRank)
	RegisterCommand(command.OpZRange, execZRange)
	RegisterCommand(command.OpZRangeByScore, execZRangeByScore)
}
