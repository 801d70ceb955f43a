// Package harness checks and measures any backend.Backend through its single
// Exec entry point. Every variant runs the same suite unmodified.
package harness

import (
	"errors"
	"testing"

	"kvcore/command"
	"kvcore/interface/backend"
	"kvcore/lib/utils"
	"kvcore/reply"
)

// Factory builds a fresh, empty backend for one test.
type Factory func() (backend.Backend, error)

// open builds a backend and closes it when the test ends.
func open(tb testing.TB, factory Factory) backend.Backend {
	tb.Helper()
	b, err := factory()
	if err != nil {
		tb.Fatalf("factory() error = %v", err)
	}
	tb.Cleanup(func() {
		if err := b.Close(); err != nil {
			tb.Errorf("Close() error = %v", err)
		}
	})
	return b
}

// run parses and executes a command line, failing the test on any error.
func run(tb testing.TB, b backend.Backend, line ...string) reply.Reply {
	tb.Helper()
	r, err := exec(b, line...)
	if err != nil {
		tb.Fatalf("%v error = %v", line, err)
	}
	return r
}

func exec(b backend.Backend, line ...string) (reply.Reply, error) {
	cmd, err := command.Parse(utils.ToCmdLine(line...))
	if err != nil {
		return nil, err
	}
	return b.Exec(cmd)
}

// expect executes line and compares the reply with want.
func expect(tb testing.TB, b backend.Backend, want reply.Reply, line ...string) {
	tb.Helper()
	if got := run(tb, b, line...); !reply.Equal(got, want) {
		tb.Errorf("%v = %#v, want %#v", line, got, want)
	}
}

// expectErr executes line and checks that it fails with target.
func expectErr(tb testing.TB, b backend.Backend, target error, line ...string) {
	tb.Helper()
	r, err := exec(b, line...)
	if !errors.Is(err, target) {
		tb.Errorf("%v = %#v, %v, want error %v", line, r, err, target)
	}
}

func intReply(n int64) reply.Reply { return reply.MakeIntReply(n) }

func bulk(s string) reply.Reply { return reply.MakeBulkReply([]byte(s)) }

func multi(items ...string) reply.Reply {
	args := make([][]byte, len(items))
	for i, s := range items {
		args[i] = []byte(s)
	}
	return reply.MakeMultiBulkReply(args)
}

var (
	nilReply = reply.MakeNilReply()
	okReply  = reply.MakeOkReply()
)
