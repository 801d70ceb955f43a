package harness

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"kvcore/command"
	"kvcore/interface/backend"
	"kvcore/lib/utils"
)

const benchKeys = 1024

// RunBenchmarks measures the hot operations of a backend under parallel load.
func RunBenchmarks(b *testing.B, factory Factory) {
	b.Run("GET", func(b *testing.B) {
		be := open(b, factory)
		for i := 0; i < benchKeys; i++ {
			run(b, be, "SET", "str:"+strconv.Itoa(i), "value")
		}
		parallel(b, be, func(rng *rand.Rand, _ int64) *command.Command {
			return mustCommand(command.OpGet, "str:"+strconv.Itoa(rng.Intn(benchKeys)))
		})
	})
	b.Run("SET", func(b *testing.B) {
		parallel(b, open(b, factory), func(rng *rand.Rand, n int64) *command.Command {
			return mustCommand(command.OpSet, "str:"+strconv.Itoa(rng.Intn(benchKeys)), strconv.FormatInt(n, 10))
		})
	})
	b.Run("INCR", func(b *testing.B) {
		parallel(b, open(b, factory), func(rng *rand.Rand, _ int64) *command.Command {
			return mustCommand(command.OpIncr, "cnt:"+strconv.Itoa(rng.Intn(benchKeys)))
		})
	})
	b.Run("LPUSH", func(b *testing.B) {
		parallel(b, open(b, factory), func(rng *rand.Rand, n int64) *command.Command {
			return mustCommand(command.OpLPush, "list:"+strconv.Itoa(rng.Intn(benchKeys)), strconv.FormatInt(n, 10))
		})
	})
	b.Run("ZADD", func(b *testing.B) {
		parallel(b, open(b, factory), func(rng *rand.Rand, n int64) *command.Command {
			return mustCommand(command.OpZAdd, "zset:"+strconv.Itoa(rng.Intn(benchKeys)),
				strconv.Itoa(rng.Intn(1000)), strconv.FormatInt(n, 10))
		})
	})
	b.Run("Mixed", func(b *testing.B) {
		be := open(b, factory)
		cfg := LoadConfig{KeySpace: benchKeys, WriteRatio: 0.2}.withDefaults()
		var seed atomic.Int64
		b.ReportAllocs()
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			c := &loadClient{backend: be, cfg: cfg, rng: rand.New(rand.NewSource(seed.Add(1)))}
			for pb.Next() {
				if _, err := be.Exec(c.next()); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})
}

// parallel runs the command produced by gen once per iteration across GOMAXPROCS goroutines.
func parallel(b *testing.B, be backend.Backend, gen func(rng *rand.Rand, n int64) *command.Command) {
	var seed atomic.Int64
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(seed.Add(1)))
		var n int64
		for pb.Next() {
			n++
			if _, err := be.Exec(gen(rng, n)); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func mustCommand(op command.Op, args ...string) *command.Command {
	cmd, err := command.New(op, utils.ToCmdLine(args...)...)
	if err != nil {
		panic(err)
	}
	return cmd
}
