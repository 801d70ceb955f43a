package command

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"kvcore/reply"
)

// Op identifies an operation. The set is closed: only the ops declared here exist.
type Op uint8

const (
	OpDel Op = iota + 1
	OpExists
	OpExpire
	OpPExpire
	OpPersist
	OpTTL
	OpPTTL
	OpType
	OpKeys
	OpDBSize
	OpFlushDB
	OpInfo

	OpSet
	OpGet
	OpMGet
	OpIncr
	OpDecr
	OpIncrBy
	OpDecrBy

	OpLPush
	OpRPush
	OpLPop
	OpRPop
	OpLLen
	OpLRange
	OpLIndex

	OpSAdd
	OpSRem
	OpSMembers
	OpSCard
	OpSIsMember
	OpSDiff
	OpSDiffStore

	OpHSet
	OpHGet
	OpHMGet
	OpHGetAll
	OpHDel
	OpHLen
	OpHExists

	OpZAdd
	OpZScore
	OpZCard
	OpZRem
	OpZRank
	OpZRange
	OpZRangeByScore

	opCount
)

// key position modes
const (
	noKeys = iota
	firstKey
	allKeys
)

type signature struct {
	name string
	// arity counts the command name; arity < 0 means len(args) >= -arity
	arity    int
	keys     int
	write    bool
	validate func(args [][]byte) error
}

var table [opCount]signature

var byName = make(map[string]Op)

func register(op Op, name string, arity int, keys int, write bool, validate func([][]byte) error) {
	table[op] = signature{
		name:     name,
		arity:    arity,
		keys:     keys,
		write:    write,
		validate: validate,
	}
	byName[strings.ToLower(name)] = op
}

func init() {
	register(OpDel, "DEL", -2, allKeys, true, nil)
	register(OpExists, "EXISTS", -2, allKeys, false, nil)
	register(OpExpire, "EXPIRE", 3, firstKey, true, intAt(1))
	register(OpPExpire, "PEXPIRE", 3, firstKey, true, intAt(1))
	register(OpPersist, "PERSIST", 2, firstKey, true, nil)
	register(OpTTL, "TTL", 2, firstKey, false, nil)
	register(OpPTTL, "PTTL", 2, firstKey, false, nil)
	register(OpType, "TYPE", 2, firstKey, false, nil)
	register(OpKeys, "KEYS", 1, noKeys, false, nil)
	register(OpDBSize, "DBSIZE", 1, noKeys, false, nil)
	register(OpFlushDB, "FLUSHDB", 1, noKeys, true, nil)
	register(OpInfo, "INFO", 1, noKeys, false, nil)

	register(OpSet, "SET", -3, firstKey, true, validateSet)
	register(OpGet, "GET", 2, firstKey, false, nil)
	register(OpMGet, "MGET", -2, allKeys, false, nil)
	register(OpIncr, "INCR", 2, firstKey, true, nil)
	register(OpDecr, "DECR", 2, firstKey, true, nil)
	register(OpIncrBy, "INCRBY", 3, firstKey, true, intAt(1))
	register(OpDecrBy, "DECRBY", 3, firstKey, true, intAt(1))

	register(OpLPush, "LPUSH", -3, firstKey, true, nil)
	register(OpRPush, "RPUSH", -3, firstKey, true, nil)
	register(OpLPop, "LPOP", 2, firstKey, true, nil)
	register(OpRPop, "RPOP", 2, firstKey, true, nil)
	register(OpLLen, "LLEN", 2, firstKey, false, nil)
	register(OpLRange, "LRANGE", 4, firstKey, false, intAt(1, 2))
	register(OpLIndex, "LINDEX", 3, firstKey, false, intAt(1))

	register(OpSAdd, "SADD", -3, firstKey, true, nil)
	register(OpSRem, "SREM", -3, firstKey, true, nil)
	register(OpSMembers, "SMEMBERS", 2, firstKey, false, nil)
	register(OpSCard, "SCARD", 2, firstKey, false, nil)
	register(OpSIsMember, "SISMEMBER", 3, firstKey, false, nil)
	register(OpSDiff, "SDIFF", -2, allKeys, false, nil)
	register(OpSDiffStore, "SDIFFSTORE", -3, allKeys, true, nil)

	register(OpHSet, "HSET", -4, firstKey, true, validatePairs(reply.ErrInvalidArity, nil))
	register(OpHGet, "HGET", 3, firstKey, false, nil)
	register(OpHMGet, "HMGET", -3, firstKey, false, nil)
	register(OpHGetAll, "HGETALL", 2, firstKey, false, nil)
	register(OpHDel, "HDEL", -3, firstKey, true, nil)
	register(OpHLen, "HLEN", 2, firstKey, false, nil)
	register(OpHExists, "HEXISTS", 3, firstKey, false, nil)

	register(OpZAdd, "ZADD", -4, firstKey, true, validatePairs(reply.ErrSyntax, func(score []byte) error {
		_, err := ParseFloat(score)
		return err
	}))
	register(OpZScore, "ZSCORE", 3, firstKey, false, nil)
	register(OpZCard, "ZCARD", 2, firstKey, false, nil)
	register(OpZRem, "ZREM", -3, firstKey, true, nil)
	register(OpZRank, "ZRANK", 3, firstKey, false, nil)
	register(OpZRange, "ZRANGE", -4, firstKey, false, validateRange(intAt(1, 2)))
	register(OpZRangeByScore, "ZRANGEBYSCORE", -4, firstKey, false, validateRange(floatAt(1, 2)))
}

// Lookup finds an op by its case-insensitive name.
func Lookup(name string) (Op, bool) {
	op, ok := byName[strings.ToLower(name)]
	return op, ok
}

// String returns the canonical upper case name.
func (op Op) String() string {
	if op == 0 || op >= opCount {
		return "UNKNOWN"
	}
	return table[op].name
}

// IsWrite reports whether the op may mutate the key table.
func (op Op) IsWrite() bool {
	return op > 0 && op < opCount && table[op].write
}

// Ops lists every supported op.
func Ops() []Op {
	out := make([]Op, 0, opCount-1)
	for op := Op(1); op < opCount; op++ {
		out = append(out, op)
	}
	return out
}

func checkArity(op Op, args [][]byte) error {
	arity := table[op].arity
	n := len(args) + 1
	if (arity >= 0 && n != arity) || (arity < 0 && n < -arity) {
		return fmt.Errorf("%w for '%s' command", reply.ErrInvalidArity, strings.ToLower(table[op].name))
	}
	return nil
}

// ParseInt parses a decimal int64 argument.
func ParseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, reply.ErrNotAnInteger
	}
	return n, nil
}

// ParseFloat parses a float64 argument. "inf", "+inf" and "-inf" are accepted, NaN is not.
func ParseFloat(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) {
		return 0, reply.ErrNotAFloat
	}
	return f, nil
}

func intAt(positions ...int) func([][]byte) error {
	return func(args [][]byte) error {
		for _, p := range positions {
			if _, err := ParseInt(args[p]); err != nil {
				return err
			}
		}
		return nil
	}
}

func floatAt(positions ...int) func([][]byte) error {
	return func(args [][]byte) error {
		for _, p := range positions {
			if _, err := ParseFloat(args[p]); err != nil {
				return err
			}
		}
		return nil
	}
}

// validatePairs checks key followed by an even number of arguments.
func validatePairs(oddErr error, first func([]byte) error) func([][]byte) error {
	return func(args [][]byte) error {
		if (len(args)-1)%2 != 0 {
			return oddErr
		}
		if first == nil {
			return nil
		}
		for i := 1; i < len(args); i += 2 {
			if err := first(args[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

// validateRange checks key min max [WITHSCORES].
func validateRange(bounds func([][]byte) error) func([][]byte) error {
	return func(args [][]byte) error {
		if len(args) > 4 || (len(args) == 4 && !IsWord(args[3], "WITHSCORES")) {
			return reply.ErrSyntax
		}
		return bounds(args)
	}
}

// SetOptions are the parsed trailing options of SET.
type SetOptions struct {
	// TTLMillis is zero when no expiration was requested.
	TTLMillis int64
}

// ParseSetOptions reads [EX seconds | PX milliseconds] from the arguments after key and value.
func ParseSetOptions(opts [][]byte) (SetOptions, error) {
	var out SetOptions
	for i := 0; i < len(opts); i++ {
		var unit int64
		switch {
		case IsWord(opts[i], "EX"):
			unit = 1000
		case IsWord(opts[i], "PX"):
			unit = 1
		default:
			return out, reply.ErrSyntax
		}
		if out.TTLMillis != 0 || i+1 >= len(opts) {
			return out, reply.ErrSyntax
		}
		i++
		n, err := ParseInt(opts[i])
		if err != nil {
			return out, err
		}
		if n <= 0 || n > math.MaxInt64/unit {
			return out, fmt.Errorf("%w: invalid expire time in 'set' command", reply.ErrSyntax)
		}
		out.TTLMillis = n * unit
	}
	return out, nil
}

func validateSet(args [][]byte) error {
	_, err := ParseSetOptions(args[2:])
	return err
}

// IsWord reports whether b equals word ignoring case.
func IsWord(b []byte, word string) bool {
	return bytes.EqualFold(b, []byte(word))
}
