package value

import "bytes"

// List is a double ended queue of scalars. The front half is kept reversed in
// head so both ends push and pop in amortized constant time.
type List struct {
	head [][]byte
	tail [][]byte
}

// NewList returns a list holding items in order.
func NewList(items ...[]byte) *List {
	l := &List{}
	for _, it := range items {
		l.PushBack(it)
	}
	return l
}

func (l *List) Kind() Kind { return KindList }
func (l *List) Len() int   { return len(l.head) + len(l.tail) }
func (*List) isValue()     {}

func (l *List) Clone() Value {
	c := &List{tail: make([][]byte, 0, l.Len())}
	for i := 0; i < l.Len(); i++ {
		c.tail = append(c.tail, bytes.Clone(l.Index(i)))
	}
	return c
}

func (l *List) PushFront(v []byte) { l.head = append(l.head, v) }
func (l *List) PushBack(v []byte)  { l.tail = append(l.tail, v) }

// PopFront removes and returns the first element, or nil if the list is empty.
func (l *List) PopFront() []byte {
	if n := len(l.head); n > 0 {
		v := l.head[n-1]
		l.head[n-1] = nil
		l.head = l.head[:n-1]
		return v
	}
	if len(l.tail) == 0 {
		return nil
	}
	v := l.tail[0]
	l.tail[0] = nil
	l.tail = l.tail[1:]
	return v
}

// PopBack removes and returns the last element, or nil if the list is empty.
func (l *List) PopBack() []byte {
	if n := len(l.tail); n > 0 {
		v := l.tail[n-1]
		l.tail[n-1] = nil
		l.tail = l.tail[:n-1]
		return v
	}
	if len(l.head) == 0 {
		return nil
	}
	v := l.head[0]
	l.head[0] = nil
	l.head = l.head[1:]
	return v
}

// Index returns the element at position i (0 is the front). i must be in range.
func (l *List) Index(i int) []byte {
	if i < len(l.head) {
		return l.head[len(l.head)-1-i]
	}
	return l.tail[i-len(l.head)]
}

// Range returns copies of the elements between start and stop inclusive,
// after resolving negative offsets from the end and clamping to bounds.
func (l *List) Range(start, stop int64) [][]byte {
	lo, hi, ok := ClampRange(start, stop, l.Len())
	if !ok {
		return [][]byte{}
	}
	out := make([][]byte, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, bytes.Clone(l.Index(i)))
	}
	return out
}

// ClampRange converts inclusive Redis style offsets into valid indexes for a
// sequence of length n. ok is false when the range selects nothing.
func ClampRange(start, stop int64, n int) (lo, hi int, ok bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop), true
}
