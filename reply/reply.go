// Package reply defines the results a backend returns from executing a command.
package reply

import (
	"bytes"

	"kvcore/lib/utils"
)

// Reply is the result of one command execution. Every reply owns its data.
type Reply interface {
	isReply()
}

// NilReply reports an absent key, field or member.
type NilReply struct{}

// OkReply acknowledges a write with no other result.
type OkReply struct{}

// IntReply carries counts, flags and arithmetic results.
type IntReply struct {
	Code int64
}

// BulkReply carries a single scalar.
type BulkReply struct {
	Arg []byte
}

// MultiBulkReply carries an ordered sequence of scalars. A nil element marks an absent entry.
type MultiBulkReply struct {
	Args [][]byte
}

// StatusReply carries a short textual status such as the TYPE name.
type StatusReply struct {
	Status string
}

func (NilReply) isReply()       {}
func (OkReply) isReply()        {}
func (IntReply) isReply()       {}
func (BulkReply) isReply()      {}
func (MultiBulkReply) isReply() {}
func (StatusReply) isReply()    {}

var (
	theNil = NilReply{}
	theOk  = OkReply{}
)

func MakeNilReply() Reply { return theNil }
func MakeOkReply() Reply  { return theOk }

func MakeIntReply(code int64) Reply { return IntReply{Code: code} }

func MakeBulkReply(arg []byte) Reply { return BulkReply{Arg: arg} }

func MakeMultiBulkReply(args [][]byte) Reply { return MultiBulkReply{Args: args} }

func MakeStatusReply(status string) Reply { return StatusReply{Status: status} }

// MakeBoolReply returns 1 for true and 0 for false.
func MakeBoolReply(b bool) Reply {
	if b {
		return IntReply{Code: 1}
	}
	return IntReply{Code: 0}
}

// Equal reports whether two replies have the same shape and content.
// An empty MultiBulkReply equals one with a nil slice.
func Equal(a, b Reply) bool {
	switch x := a.(type) {
	case NilReply, OkReply:
		return a == b
	case IntReply:
		y, ok := b.(IntReply)
		return ok && x.Code == y.Code
	case BulkReply:
		y, ok := b.(BulkReply)
		return ok && bytes.Equal(x.Arg, y.Arg)
	case StatusReply:
		y, ok := b.(StatusReply)
		return ok && x.Status == y.Status
	case MultiBulkReply:
		y, ok := b.(MultiBulkReply)
		if !ok || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !utils.BytesEquals(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
