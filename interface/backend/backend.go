package backend

import (
	"kvcore/command"
	"kvcore/reply"
)

// Backend is the single execution entry point shared by every storage strategy.
//
// Exec is atomic with respect to every other command touching the same keys,
// never blocks indefinitely and never applies part of a command before failing.
// The returned reply owns its data.
type Backend interface {
	Exec(cmd *command.Command) (reply.Reply, error)
	Close() error
}
