package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"kvcore/reply"
)

// RunConformance runs the behavioural suite against backends built by factory.
// Each subtest gets its own backend.
func RunConformance(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, factory Factory)
	}{
		{"RoundTrip", testRoundTrip},
		{"IdempotentDelete", testIdempotentDelete},
		{"WrongType", testWrongType},
		{"ExpirationMeansAbsence", testExpiration},
		{"TTL", testTTL},
		{"IntegerOverflow", testOverflow},
		{"SortedSetOrder", testSortedSetOrder},
		{"PushPopInverse", testPushPopInverse},
		{"Scenarios", testScenarios},
		{"ConcurrentIncr", testConcurrentIncr},
		{"Strings", testStrings},
		{"Sets", testSets},
		{"Hashes", testHashes},
		{"Keyspace", testKeyspace},
		{"RejectedBeforeExecution", testRejected},
		{"RepliesAreCopies", testRepliesAreCopies},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory)
		})
	}
}

func testRoundTrip(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, nilReply, "GET", "k")
	expect(t, b, okReply, "SET", "k", "v")
	expect(t, b, bulk("v"), "GET", "k")
	expect(t, b, okReply, "SET", "k", "")
	expect(t, b, bulk(""), "GET", "k")
	expect(t, b, okReply, "SET", "bin", "\x00\xff")
	expect(t, b, bulk("\x00\xff"), "GET", "bin")
}

func testIdempotentDelete(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, intReply(0), "DEL", "k")
	expect(t, b, intReply(0), "DEL", "k")
	run(t, b, "SET", "k", "v")
	run(t, b, "SET", "j", "v")
	expect(t, b, intReply(2), "DEL", "k", "j", "missing")
	expect(t, b, intReply(0), "DEL", "k")
	expect(t, b, nilReply, "GET", "k")
}

func testWrongType(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "LPUSH", "list", "a")
	run(t, b, "SET", "str", "1")

	expectErr(t, b, reply.ErrWrongType, "GET", "list")
	expectErr(t, b, reply.ErrWrongType, "INCR", "list")
	expectErr(t, b, reply.ErrWrongType, "SADD", "list", "x")
	expectErr(t, b, reply.ErrWrongType, "HSET", "list", "f", "v")
	expectErr(t, b, reply.ErrWrongType, "ZADD", "list", "1", "m")
	expectErr(t, b, reply.ErrWrongType, "LPUSH", "str", "a")
	expectErr(t, b, reply.ErrWrongType, "SMEMBERS", "str")
	expectErr(t, b, reply.ErrWrongType, "HGET", "str", "f")
	expectErr(t, b, reply.ErrWrongType, "ZRANGE", "str", "0", "-1")
	expectErr(t, b, reply.ErrWrongType, "MGET", "str", "list")

	// failed commands leave both keys untouched
	expect(t, b, intReply(1), "LLEN", "list")
	expect(t, b, bulk("1"), "GET", "str")

	// SET replaces any variant
	expect(t, b, okReply, "SET", "list", "x")
	expect(t, b, bulk("x"), "GET", "list")
}

func testExpiration(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "k", "v", "PX", "20")
	run(t, b, "RPUSH", "l", "a", "b")
	expect(t, b, intReply(1), "PEXPIRE", "l", "20")
	expect(t, b, bulk("v"), "GET", "k")

	time.Sleep(60 * time.Millisecond)

	expect(t, b, nilReply, "GET", "k")
	expect(t, b, intReply(0), "EXISTS", "k", "l")
	expect(t, b, intReply(-2), "TTL", "k")
	expect(t, b, reply.MakeStatusReply("none"), "TYPE", "l")
	expect(t, b, intReply(0), "LLEN", "l")
	expect(t, b, intReply(0), "DEL", "k")
	expect(t, b, multi(), "KEYS")
	expect(t, b, intReply(0), "DBSIZE")

	// writes see an absent key too
	expect(t, b, intReply(1), "INCR", "k")
	expect(t, b, intReply(1), "LPUSH", "l", "z")
	expect(t, b, multi("z"), "LRANGE", "l", "0", "-1")
	expect(t, b, intReply(-1), "TTL", "l")
}

func testTTL(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, intReply(0), "EXPIRE", "missing", "10")
	expect(t, b, intReply(0), "PERSIST", "missing")

	run(t, b, "SET", "k", "v", "EX", "100")
	expect(t, b, intReply(100), "TTL", "k")
	pttl, ok := run(t, b, "PTTL", "k").(reply.IntReply)
	if !ok || pttl.Code <= 99000 || pttl.Code > 100000 {
		t.Errorf("PTTL k = %#v, want (99000, 100000]", pttl)
	}

	expect(t, b, intReply(1), "PERSIST", "k")
	expect(t, b, intReply(0), "PERSIST", "k")
	expect(t, b, intReply(-1), "TTL", "k")

	// SET without options clears a previous deadline
	expect(t, b, intReply(1), "EXPIRE", "k", "100")
	run(t, b, "SET", "k", "w")
	expect(t, b, intReply(-1), "TTL", "k")

	// INCR keeps it
	run(t, b, "SET", "n", "1", "EX", "100")
	run(t, b, "INCR", "n")
	expect(t, b, intReply(100), "TTL", "n")

	// a non-positive ttl deletes at once
	expect(t, b, intReply(1), "EXPIRE", "k", "0")
	expect(t, b, nilReply, "GET", "k")
	expect(t, b, intReply(-2), "PTTL", "k")
}

func testOverflow(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "max", "9223372036854775807")
	expectErr(t, b, reply.ErrIntegerOverflow, "INCR", "max")
	expectErr(t, b, reply.ErrIntegerOverflow, "INCRBY", "max", "1")
	expect(t, b, bulk("9223372036854775807"), "GET", "max")
	expect(t, b, intReply(9223372036854775806), "DECR", "max")

	run(t, b, "SET", "min", "-9223372036854775808")
	expectErr(t, b, reply.ErrIntegerOverflow, "DECR", "min")
	expectErr(t, b, reply.ErrIntegerOverflow, "DECRBY", "min", "1")
	expect(t, b, bulk("-9223372036854775808"), "GET", "min")

	expectErr(t, b, reply.ErrIntegerOverflow, "DECRBY", "zero", "-9223372036854775808")
	expectErr(t, b, reply.ErrIntegerOverflow, "INCRBY", "min", "-1")

	run(t, b, "SET", "text", "ten")
	expectErr(t, b, reply.ErrNotAnInteger, "INCR", "text")
	run(t, b, "SET", "spaced", " 1")
	expectErr(t, b, reply.ErrNotAnInteger, "INCR", "spaced")
	expect(t, b, intReply(-5), "DECRBY", "fresh", "5")
	expect(t, b, intReply(5), "INCRBY", "fresh", "10")
}

func testSortedSetOrder(t *testing.T, factory Factory) {
	b := open(t, factory)
	orders := [][]string{
		{"1", "a", "2", "b", "1", "c", "2", "d"},
		{"2", "d", "1", "c", "2", "b", "1", "a"},
		{"2", "b", "1", "a", "2", "d", "1", "c"},
	}
	for i, pairs := range orders {
		key := "z" + strconv.Itoa(i)
		expect(t, b, intReply(4), append([]string{"ZADD", key}, pairs...)...)
		expect(t, b, multi("a", "c", "b", "d"), "ZRANGE", key, "0", "-1")
		expect(t, b, multi("a", "1", "c", "1", "b", "2", "d", "2"), "ZRANGE", key, "0", "-1", "WITHSCORES")
		expect(t, b, multi("b", "d"), "ZRANGEBYSCORE", key, "1.5", "+inf")
		expect(t, b, multi("a", "1", "c", "1", "b", "2", "d", "2"), "ZRANGEBYSCORE", key, "1", "2", "withscores")
		expect(t, b, multi("a", "c"), "ZRANGEBYSCORE", key, "-inf", "1")
		expect(t, b, intReply(3), "ZRANK", key, "d")
	}

	expect(t, b, intReply(0), "ZADD", "z0", "0.5", "d")
	expect(t, b, multi("d", "a"), "ZRANGE", "z0", "0", "1")
	expect(t, b, bulk("0.5"), "ZSCORE", "z0", "d")
	expect(t, b, nilReply, "ZSCORE", "z0", "missing")
	expect(t, b, nilReply, "ZRANK", "z0", "missing")
	expect(t, b, multi("b"), "ZRANGE", "z0", "-1", "-1")
	expect(t, b, multi(), "ZRANGE", "z0", "5", "10")
	expect(t, b, multi(), "ZRANGEBYSCORE", "z0", "3", "1")
	expect(t, b, intReply(4), "ZCARD", "z0")
	expect(t, b, intReply(2), "ZREM", "z0", "a", "b", "missing")
	expect(t, b, intReply(2), "ZCARD", "z0")
	expect(t, b, intReply(2), "ZREM", "z0", "c", "d")
	expect(t, b, intReply(0), "EXISTS", "z0")
	expect(t, b, intReply(0), "ZCARD", "z0")
}

func testPushPopInverse(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, intReply(2), "RPUSH", "l", "x", "y")
	expect(t, b, intReply(3), "LPUSH", "l", "s")
	expect(t, b, bulk("s"), "LPOP", "l")
	expect(t, b, intReply(2), "LLEN", "l")
	expect(t, b, intReply(3), "RPUSH", "l", "t")
	expect(t, b, bulk("t"), "RPOP", "l")
	expect(t, b, multi("x", "y"), "LRANGE", "l", "0", "-1")

	expect(t, b, intReply(4), "LPUSH", "l", "a", "b")
	expect(t, b, multi("b", "a", "x", "y"), "LRANGE", "l", "0", "-1")
	expect(t, b, multi("a", "x"), "LRANGE", "l", "1", "-2")
	expect(t, b, multi(), "LRANGE", "l", "3", "1")
	expect(t, b, bulk("y"), "LINDEX", "l", "-1")
	expect(t, b, bulk("b"), "LINDEX", "l", "0")
	expect(t, b, nilReply, "LINDEX", "l", "4")
	expect(t, b, nilReply, "LINDEX", "l", "-5")

	for _, want := range []string{"b", "a", "x", "y"} {
		expect(t, b, bulk(want), "LPOP", "l")
	}
	expect(t, b, nilReply, "LPOP", "l")
	expect(t, b, nilReply, "RPOP", "l")
	expect(t, b, intReply(0), "EXISTS", "l")
}

func testScenarios(t *testing.T, factory Factory) {
	b := open(t, factory)

	run(t, b, "SET", "foo", "10")
	expect(t, b, intReply(11), "INCR", "foo")
	expect(t, b, bulk("11"), "GET", "foo")

	run(t, b, "HSET", "h", "f1", "a")
	expect(t, b, intReply(0), "HSET", "h", "f1", "b")
	expect(t, b, bulk("b"), "HGET", "h", "f1")
	expect(t, b, intReply(1), "HLEN", "h")

	expect(t, b, intReply(1), "SADD", "s", "x")
	expect(t, b, intReply(0), "SADD", "s", "x")
	expect(t, b, intReply(1), "SCARD", "s")

	run(t, b, "LPUSH", "k", "a")
	expectErr(t, b, reply.ErrWrongType, "GET", "k")
}

func testConcurrentIncr(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "counter", "0")

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := exec(b, "INCR", "counter"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("INCR error = %v", err)
	}
	expect(t, b, bulk(strconv.Itoa(workers*perWorker)), "GET", "counter")
}

func testStrings(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "a", "1")
	run(t, b, "SET", "b", "2")
	want := reply.MakeMultiBulkReply([][]byte{[]byte("1"), nil, []byte("2"), []byte("1")})
	if got := run(t, b, "MGET", "a", "missing", "b", "a"); !reply.Equal(got, want) {
		t.Errorf("MGET = %#v, want %#v", got, want)
	}
	expect(t, b, intReply(2), "EXISTS", "a", "a")
	expect(t, b, okReply, "set", "a", "v", "px", "100000")
	expect(t, b, intReply(100), "TTL", "a")
}

func testSets(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, intReply(3), "SADD", "s", "c", "a", "b")
	expect(t, b, intReply(1), "SREM", "s", "a", "z")
	expect(t, b, multi("b", "c"), "SMEMBERS", "s")
	expect(t, b, intReply(1), "SISMEMBER", "s", "b")
	expect(t, b, intReply(0), "SISMEMBER", "s", "a")
	expect(t, b, intReply(0), "SISMEMBER", "missing", "a")
	expect(t, b, multi(), "SMEMBERS", "missing")

	run(t, b, "SADD", "t", "c", "d")
	expect(t, b, multi("b"), "SDIFF", "s", "t")
	expect(t, b, multi("d"), "SDIFF", "t", "s")
	expect(t, b, multi("b", "c"), "SDIFF", "s", "missing")
	expect(t, b, multi(), "SDIFF", "missing", "s")

	expect(t, b, intReply(1), "SDIFFSTORE", "dst", "s", "t")
	expect(t, b, multi("b"), "SMEMBERS", "dst")
	expect(t, b, intReply(2), "SDIFFSTORE", "s", "s", "missing")
	expect(t, b, intReply(0), "SDIFFSTORE", "dst", "t", "t")
	expect(t, b, intReply(0), "EXISTS", "dst")

	run(t, b, "SET", "str", "x")
	expectErr(t, b, reply.ErrWrongType, "SDIFF", "s", "str")
	expectErr(t, b, reply.ErrWrongType, "SDIFFSTORE", "dst", "str")
	// SDIFFSTORE overwrites a destination of any variant
	expect(t, b, intReply(2), "SDIFFSTORE", "str", "s")
	expect(t, b, reply.MakeStatusReply("set"), "TYPE", "str")

	expect(t, b, intReply(2), "SREM", "s", "b", "c")
	expect(t, b, intReply(0), "EXISTS", "s")
	expect(t, b, intReply(0), "SREM", "s", "b")
}

func testHashes(t *testing.T, factory Factory) {
	b := open(t, factory)
	expect(t, b, intReply(2), "HSET", "h", "b", "2", "a", "1")
	expect(t, b, intReply(1), "HSET", "h", "a", "3", "c", "4")
	expect(t, b, bulk("3"), "HGET", "h", "a")
	expect(t, b, nilReply, "HGET", "h", "x")
	expect(t, b, nilReply, "HGET", "missing", "x")

	want := reply.MakeMultiBulkReply([][]byte{[]byte("3"), nil, []byte("4")})
	if got := run(t, b, "HMGET", "h", "a", "x", "c"); !reply.Equal(got, want) {
		t.Errorf("HMGET = %#v, want %#v", got, want)
	}
	expect(t, b, multi("a", "3", "b", "2", "c", "4"), "HGETALL", "h")
	expect(t, b, multi(), "HGETALL", "missing")
	expect(t, b, intReply(1), "HEXISTS", "h", "b")
	expect(t, b, intReply(0), "HEXISTS", "h", "x")

	expect(t, b, intReply(1), "HDEL", "h", "a", "x")
	expect(t, b, intReply(2), "HLEN", "h")
	expect(t, b, intReply(2), "HDEL", "h", "b", "c")
	expect(t, b, intReply(0), "EXISTS", "h")
	expect(t, b, intReply(0), "HLEN", "h")
}

func testKeyspace(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "e", "1")
	run(t, b, "LPUSH", "d", "1")
	run(t, b, "SADD", "c", "1")
	run(t, b, "HSET", "b", "f", "1")
	run(t, b, "ZADD", "a", "1", "m")
	run(t, b, "EXPIRE", "a", "100")

	for key, kind := range map[string]string{"e": "string", "d": "list", "c": "set", "b": "hash", "a": "zset", "x": "none"} {
		expect(t, b, reply.MakeStatusReply(kind), "TYPE", key)
	}
	expect(t, b, multi("a", "b", "c", "d", "e"), "KEYS")
	expect(t, b, intReply(5), "DBSIZE")

	info, ok := run(t, b, "INFO").(reply.BulkReply)
	if !ok {
		t.Fatalf("INFO reply type = %T, want BulkReply", info)
	}
	for _, line := range []string{"variant:", "backend_id:", "keys:5", "expires:1"} {
		if !bytes.Contains(info.Arg, []byte(line)) {
			t.Errorf("INFO = %q, missing %q", info.Arg, line)
		}
	}

	expect(t, b, okReply, "FLUSHDB")
	expect(t, b, intReply(0), "DBSIZE")
	expect(t, b, multi(), "KEYS")
	expect(t, b, nilReply, "GET", "e")
}

func testRejected(t *testing.T, factory Factory) {
	b := open(t, factory)
	tests := []struct {
		line []string
		err  error
	}{
		{[]string{"NOPE", "k"}, reply.ErrUnknownOperation},
		{[]string{"GET"}, reply.ErrInvalidArity},
		{[]string{"GET", "a", "b"}, reply.ErrInvalidArity},
		{[]string{"HSET", "h", "f", "v", "g"}, reply.ErrInvalidArity},
		{[]string{"INCRBY", "n", "one"}, reply.ErrNotAnInteger},
		{[]string{"ZADD", "z", "nan", "m"}, reply.ErrNotAFloat},
		{[]string{"ZADD", "z", "1", "m", "2"}, reply.ErrSyntax},
		{[]string{"SET", "k", "v", "EX", "0"}, reply.ErrSyntax},
		{[]string{"SET", "k", "v", "KEEP"}, reply.ErrSyntax},
		{[]string{"ZRANGE", "z", "0", "1", "SCORES"}, reply.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.line), func(t *testing.T) {
			expectErr(t, b, tt.err, tt.line...)
		})
	}
	// nothing above reached the key table
	expect(t, b, intReply(0), "DBSIZE")
}

func testRepliesAreCopies(t *testing.T, factory Factory) {
	b := open(t, factory)
	run(t, b, "SET", "k", "value")
	run(t, b, "RPUSH", "l", "item")
	run(t, b, "HSET", "h", "f", "v")

	for _, line := range [][]string{{"GET", "k"}, {"LINDEX", "l", "0"}, {"HGET", "h", "f"}} {
		got := run(t, b, line...).(reply.BulkReply)
		for i := range got.Arg {
			got.Arg[i] = '!'
		}
	}
	for _, line := range [][]string{{"LRANGE", "l", "0", "-1"}, {"HGETALL", "h"}, {"MGET", "k"}} {
		got := run(t, b, line...).(reply.MultiBulkReply)
		for _, arg := range got.Args {
			for i := range arg {
				arg[i] = '!'
			}
		}
	}

	expect(t, b, bulk("value"), "GET", "k")
	expect(t, b, bulk("item"), "LINDEX", "l", "0")
	expect(t, b, multi("f", "v"), "HGETALL", "h")
}
