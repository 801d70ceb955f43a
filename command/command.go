// Package command defines the validated requests executed by a backend.
package command

import (
	"bytes"
	"fmt"

	"kvcore/reply"
)

// CmdLine is a raw command: name followed by its arguments.
type CmdLine = [][]byte

// Command is an immutable, validated request. Construct it with New or Parse.
type Command struct {
	op   Op
	args [][]byte
}

// New validates args against the signature of op and returns a command that
// owns a private copy of them.
func New(op Op, args ...[]byte) (*Command, error) {
	if op == 0 || op >= opCount {
		return nil, fmt.Errorf("%w '%d'", reply.ErrUnknownOperation, op)
	}
	if err := checkArity(op, args); err != nil {
		return nil, err
	}
	if v := table[op].validate; v != nil {
		if err := v(args); err != nil {
			return nil, err
		}
	}
	owned := make([][]byte, len(args))
	for i, a := range args {
		owned[i] = bytes.Clone(a)
		if owned[i] == nil {
			owned[i] = []byte{}
		}
	}
	return &Command{op: op, args: owned}, nil
}

// Parse builds a command from a decoded command line such as "set k v".
func Parse(line CmdLine) (*Command, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("%w ''", reply.ErrUnknownOperation)
	}
	op, ok := Lookup(string(line[0]))
	if !ok {
		return nil, fmt.Errorf("%w '%s'", reply.ErrUnknownOperation, line[0])
	}
	return New(op, line[1:]...)
}

// MustParse is Parse for fixed command lines; it panics on invalid input.
func MustParse(line CmdLine) *Command {
	cmd, err := Parse(line)
	if err != nil {
		panic(err)
	}
	return cmd
}

func (c *Command) Op() Op { return c.op }

func (c *Command) Name() string { return c.op.String() }

func (c *Command) IsWrite() bool { return c.op.IsWrite() }

// NumArgs is the number of arguments after the command name.
func (c *Command) NumArgs() int { return len(c.args) }

// Arg returns argument i. The slice must not be modified.
func (c *Command) Arg(i int) []byte { return c.args[i] }

// Args returns the arguments after the command name. The slices must not be modified.
func (c *Command) Args() [][]byte { return c.args }

// Key returns the first key, or nil for commands without keys.
func (c *Command) Key() []byte {
	if table[c.op].keys == noKeys {
		return nil
	}
	return c.args[0]
}

// Keys returns every key the command touches, in argument order.
func (c *Command) Keys() [][]byte {
	switch table[c.op].keys {
	case firstKey:
		return c.args[:1]
	case allKeys:
		return c.args
	}
	return nil
}

// CmdLine renders the command back into a fresh command line.
func (c *Command) CmdLine() CmdLine {
	line := make(CmdLine, 0, len(c.args)+1)
	line = append(line, []byte(c.op.String()))
	for _, a := range c.args {
		line = append(line, bytes.Clone(a))
	}
	return line
}

func (c *Command) String() string {
	return string(bytes.Join(c.CmdLine(), []byte(" ")))
}
