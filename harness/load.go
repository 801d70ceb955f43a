package harness

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kvcore/command"
	"kvcore/interface/backend"
	"kvcore/lib/logger"
)

const (
	defaultOperations = 10000
	batchSize         = 64
	maxSamples        = 100000
)

// LoadConfig shapes a load run. Operations bounds the run when Duration is zero.
type LoadConfig struct {
	Clients    int
	Duration   time.Duration
	Operations int
	KeySpace   int
	// WriteRatio is the share of operations that mutate, between 0 and 1.
	WriteRatio float64
	Seed       int64
}

func (cfg LoadConfig) withDefaults() LoadConfig {
	if cfg.Clients <= 0 {
		cfg.Clients = 1
	}
	if cfg.Duration <= 0 && cfg.Operations <= 0 {
		cfg.Operations = defaultOperations
	}
	if cfg.KeySpace <= 0 {
		cfg.KeySpace = 1000
	}
	cfg.WriteRatio = min(max(cfg.WriteRatio, 0), 1)
	return cfg
}

// LatencySummary describes the per-operation latency distribution.
type LatencySummary struct {
	Min  time.Duration
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// Report is the outcome of one load run.
type Report struct {
	RunID      string
	Clients    int
	Operations int64
	Errors     int64
	Elapsed    time.Duration
	OpsPerSec  float64
	Latency    LatencySummary
}

func (r *Report) String() string {
	return fmt.Sprintf("run %s: %d ops (%d errors) by %d clients in %v, %.0f ops/s, p50 %v p99 %v",
		r.RunID, r.Operations, r.Errors, r.Clients, r.Elapsed.Round(time.Millisecond), r.OpsPerSec,
		r.Latency.P50, r.Latency.P99)
}

// Load drives b with cfg.Clients concurrent clients and measures every
// operation. Failed operations are counted, not fatal.
func Load(ctx context.Context, b backend.Backend, cfg LoadConfig) (*Report, error) {
	cfg = cfg.withDefaults()
	runID := uuid.NewString()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	factory := &clientFactory{backend: b, cfg: cfg}
	clients := newClientPool(ctx, factory)
	defer clients.Close(context.Background())

	logger.Info("load run started", "run_id", runID, "clients", cfg.Clients,
		"duration", cfg.Duration, "operations", cfg.Operations, "write_ratio", cfg.WriteRatio)

	var issued atomic.Int64
	// claim reserves up to n operations from the budget.
	claim := func(n int) int {
		if cfg.Operations <= 0 {
			return n
		}
		end := issued.Add(int64(n))
		if over := end - int64(cfg.Operations); over > 0 {
			return max(n-int(over), 0)
		}
		return n
	}

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				n := claim(batchSize)
				if n == 0 {
					return
				}
				c, err := borrowClient(ctx, clients)
				if err != nil {
					if ctx.Err() == nil {
						errs <- err
					}
					return
				}
				c.run(ctx, n)
				if err := clients.ReturnObject(context.Background(), c); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(errs)
	if err := errors.Join(drain(errs)...); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	report := factory.report(runID, elapsed)
	logger.Info("load run finished", "run_id", runID, "operations", report.Operations,
		"errors", report.Errors, "ops_per_sec", report.OpsPerSec, "p99", report.Latency.P99)
	return report, nil
}

func drain(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}

func (f *clientFactory) report(runID string, elapsed time.Duration) *Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := &Report{RunID: runID, Clients: f.cfg.Clients, Elapsed: elapsed}
	var samples []time.Duration
	for _, c := range f.clients {
		r.Operations += c.ops
		r.Errors += c.errs
		samples = append(samples, c.samples...)
	}
	if elapsed > 0 {
		r.OpsPerSec = float64(r.Operations) / elapsed.Seconds()
	}
	r.Latency = summarize(samples)
	return r
}

// summarize computes the latency distribution with nearest-rank percentiles.
func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	slices.Sort(samples)
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	at := func(q float64) time.Duration {
		return samples[int(q*float64(len(samples)-1))]
	}
	return LatencySummary{
		Min:  samples[0],
		P50:  at(0.50),
		P90:  at(0.90),
		P99:  at(0.99),
		Max:  samples[len(samples)-1],
		Mean: total / time.Duration(len(samples)),
	}
}

// loadClient issues operations over typed key families so reads and writes
// never collide on variant.
type loadClient struct {
	backend backend.Backend
	cfg     LoadConfig
	rng     *rand.Rand

	ops     int64
	errs    int64
	seen    int64
	samples []time.Duration
}

func (c *loadClient) run(ctx context.Context, n int) {
	for i := 0; i < n && ctx.Err() == nil; i++ {
		cmd := c.next()
		start := time.Now()
		_, err := c.backend.Exec(cmd)
		c.record(time.Since(start))
		c.ops++
		if err != nil {
			c.errs++
		}
	}
}

// record keeps a uniform reservoir of at most maxSamples latencies.
func (c *loadClient) record(d time.Duration) {
	c.seen++
	if len(c.samples) < maxSamples {
		c.samples = append(c.samples, d)
		return
	}
	if j := c.rng.Int63n(c.seen); j < maxSamples {
		c.samples[j] = d
	}
}

func (c *loadClient) next() *command.Command {
	id := strconv.Itoa(c.rng.Intn(c.cfg.KeySpace))
	write := c.rng.Float64() < c.cfg.WriteRatio
	val := strconv.Itoa(c.rng.Int())

	var op command.Op
	var args []string
	switch family := c.rng.Intn(5); {
	case family == 0 && write:
		op, args = command.OpSet, []string{"str:" + id, val}
	case family == 0:
		op, args = command.OpGet, []string{"str:" + id}
	case family == 1 && write:
		op, args = command.OpIncr, []string{"cnt:" + id}
	case family == 1:
		op, args = command.OpGet, []string{"cnt:" + id}
	case family == 2 && write && c.rng.Intn(2) == 0:
		op, args = command.OpRPush, []string{"list:" + id, val}
	case family == 2 && write:
		op, args = command.OpLPop, []string{"list:" + id}
	case family == 2:
		op, args = command.OpLRange, []string{"list:" + id, "0", "9"}
	case family == 3 && write:
		op, args = command.OpZAdd, []string{"zset:" + id, strconv.Itoa(c.rng.Intn(1000)), val}
	case family == 3:
		op, args = command.OpZRange, []string{"zset:" + id, "0", "9", "WITHSCORES"}
	case write:
		op, args = command.OpHSet, []string{"hash:" + id, "f" + strconv.Itoa(c.rng.Intn(16)), val}
	default:
		op, args = command.OpHGetAll, []string{"hash:" + id}
	}

	return mustCommand(op, args...)
}
