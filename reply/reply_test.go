package reply_test

import (
	"errors"
	"fmt"
	"testing"

	"kvcore/reply"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b reply.Reply
		want bool
	}{
		{name: "nil", a: reply.MakeNilReply(), b: reply.NilReply{}, want: true},
		{name: "ok vs nil", a: reply.MakeOkReply(), b: reply.MakeNilReply(), want: false},
		{name: "ints", a: reply.MakeIntReply(3), b: reply.IntReply{Code: 3}, want: true},
		{name: "bulk", a: reply.MakeBulkReply([]byte("a")), b: reply.MakeBulkReply([]byte("a")), want: true},
		{name: "empty bulk vs nil", a: reply.MakeBulkReply([]byte{}), b: reply.MakeNilReply(), want: false},
		{name: "empty multi bulk", a: reply.MakeMultiBulkReply(nil), b: reply.MakeMultiBulkReply([][]byte{}), want: true},
		{
			name: "nil hole differs from empty element",
			a:    reply.MakeMultiBulkReply([][]byte{nil}),
			b:    reply.MakeMultiBulkReply([][]byte{{}}),
			want: false,
		},
		{name: "status", a: reply.MakeStatusReply("list"), b: reply.MakeStatusReply("list"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reply.Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("%w for 'get' command", reply.ErrInvalidArity)

	if got := reply.KindOf(wrapped); got != reply.KindInvalidArity {
		t.Errorf("KindOf(wrapped arity) = %v, want KindInvalidArity", got)
	}
	if got := reply.KindOf(fmt.Errorf("%w executing 'GET': boom", reply.ErrInternal)); got != reply.KindInternal {
		t.Errorf("KindOf(internal) = %v, want KindInternal", got)
	}
	if got := reply.KindOf(errors.New("boom")); got != reply.KindUnknown {
		t.Errorf("KindOf(other) = %v, want KindUnknown", got)
	}
	if !reply.Retryable(fmt.Errorf("append: %w", reply.ErrBackendUnavailable)) {
		t.Error("Retryable(BackendUnavailable) = false, want true")
	}
	if reply.Retryable(reply.ErrWrongType) {
		t.Error("Retryable(WrongType) = true, want false")
	}
}
