package database

import (
	"time"

	"kvcore/command"
	"kvcore/reply"
)

// ExecFunc executes a validated command against db at time now. The caller
// holds the command's key locks.
type ExecFunc func(db *DB, cmd *command.Command, now time.Time) (reply.Reply, error)

var cmdTable = make(map[command.Op]ExecFunc)

// RegisterCommand binds the executor of an op. Arity and argument syntax are
// already enforced by the command package.
func RegisterCommand(op command.Op, executor ExecFunc) {
	cmdTable[op] = executor
}
