// Package value defines the data shapes a key can hold.
package value

import (
	"bytes"
	"strconv"
)

// Kind identifies the variant of a stored Value.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindList
	KindSet
	KindHash
	KindSortedSet
)

// String returns the type name reported by TYPE.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindSortedSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is implemented only by the variants in this package.
type Value interface {
	Kind() Kind
	// Len is the number of elements for collections and the byte length for scalars.
	Len() int
	// Clone returns a deep copy that shares no memory with the receiver.
	Clone() Value
	isValue()
}

// Scalar is an opaque byte string.
type Scalar []byte

func (s Scalar) Kind() Kind   { return KindScalar }
func (s Scalar) Len() int     { return len(s) }
func (s Scalar) Clone() Value { return Scalar(bytes.Clone(s)) }
func (Scalar) isValue()       {}

// Int parses the scalar as a base-10 signed 64-bit integer.
func (s Scalar) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FromInt formats n the way INCR stores it.
func FromInt(n int64) Scalar {
	return Scalar(strconv.AppendInt(nil, n, 10))
}

// Equal reports whether a and b hold the same variant with the same content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Len() != b.Len() {
		return false
	}
	switch x := a.(type) {
	case Scalar:
		return bytes.Equal(x, b.(Scalar))
	case *List:
		y := b.(*List)
		for i := 0; i < x.Len(); i++ {
			if !bytes.Equal(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case *Set:
		y := b.(*Set)
		for m := range x.members {
			if _, ok := y.members[m]; !ok {
				return false
			}
		}
		return true
	case *Hash:
		y := b.(*Hash)
		for f, v := range x.fields {
			w, ok := y.fields[f]
			if !ok || !bytes.Equal(v, w) {
				return false
			}
		}
		return true
	case *SortedSet:
		y := b.(*SortedSet)
		for i := range x.elements {
			if CompareElements(x.elements[i], y.elements[i]) != 0 {
				return false
			}
		}
		return true
	}
	return false
}
