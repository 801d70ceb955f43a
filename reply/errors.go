package reply

import "errors"

// Sentinel errors returned by command construction and execution. Callers
// match them with errors.Is; the messages follow the Redis error replies.
var (
	ErrWrongType          = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrInvalidArity       = errors.New("ERR wrong number of arguments")
	ErrNotAnInteger       = errors.New("ERR value is not an integer or out of range")
	ErrIntegerOverflow    = errors.New("ERR increment or decrement would overflow")
	ErrUnknownOperation   = errors.New("ERR unknown command")
	ErrBackendUnavailable = errors.New("ERR backend unavailable")
	ErrNotAFloat          = errors.New("ERR value is not a valid float")
	ErrSyntax             = errors.New("ERR syntax error")
	ErrKeyLimitExceeded   = errors.New("ERR max key count reached")
	ErrInternal           = errors.New("ERR internal error")
)

// Kind classifies an error for front-ends mapping it to protocol replies.
type Kind int

const (
	KindUnknown Kind = iota
	KindWrongType
	KindInvalidArity
	KindNotAnInteger
	KindIntegerOverflow
	KindUnknownOperation
	KindBackendUnavailable
	KindNotAFloat
	KindSyntax
	KindKeyLimitExceeded
	KindInternal
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrWrongType, KindWrongType},
	{ErrInvalidArity, KindInvalidArity},
	{ErrNotAnInteger, KindNotAnInteger},
	{ErrIntegerOverflow, KindIntegerOverflow},
	{ErrUnknownOperation, KindUnknownOperation},
	{ErrBackendUnavailable, KindBackendUnavailable},
	{ErrNotAFloat, KindNotAFloat},
	{ErrSyntax, KindSyntax},
	{ErrKeyLimitExceeded, KindKeyLimitExceeded},
	{ErrInternal, KindInternal},
}

// KindOf returns the kind of err, or KindUnknown if it wraps none of the sentinels.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Retryable reports whether the command may succeed if sent again unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
