package value

import (
	"bytes"
	"sort"
)

// Set is an unordered collection of unique scalars.
type Set struct {
	members map[string]struct{}
}

func NewSet(members ...[]byte) *Set {
	s := &Set{members: make(map[string]struct{}, len(members))}
	for _, m := range members {
		s.Add(m)
	}
	return s
}

func (s *Set) Kind() Kind { return KindSet }
func (s *Set) Len() int   { return len(s.members) }
func (*Set) isValue()     {}

func (s *Set) Clone() Value {
	c := &Set{members: make(map[string]struct{}, len(s.members))}
	for m := range s.members {
		c.members[m] = struct{}{}
	}
	return c
}

// Add inserts m and reports whether it was new.
func (s *Set) Add(m []byte) bool {
	if _, ok := s.members[string(m)]; ok {
		return false
	}
	s.members[string(m)] = struct{}{}
	return true
}

// Remove deletes m and reports whether it was present.
func (s *Set) Remove(m []byte) bool {
	if _, ok := s.members[string(m)]; !ok {
		return false
	}
	delete(s.members, string(m))
	return true
}

func (s *Set) Has(m []byte) bool {
	_, ok := s.members[string(m)]
	return ok
}

// Members returns the members in ascending byte order.
func (s *Set) Members() [][]byte {
	keys := make([]string, 0, len(s.members))
	for m := range s.members {
		keys = append(keys, m)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// Diff returns a new set with the members of s that are in none of others.
// A nil entry in others stands for an absent key.
func (s *Set) Diff(others ...*Set) *Set {
	out := &Set{members: make(map[string]struct{})}
	if s == nil {
		return out
	}
outer:
	for m := range s.members {
		for _, o := range others {
			if o == nil {
				continue
			}
			if _, ok := o.members[m]; ok {
				continue outer
			}
		}
		out.members[m] = struct{}{}
	}
	return out
}

// Hash maps field names to scalar values.
type Hash struct {
	fields map[string][]byte
}

func NewHash() *Hash {
	return &Hash{fields: make(map[string][]byte)}
}

func (h *Hash) Kind() Kind { return KindHash }
func (h *Hash) Len() int   { return len(h.fields) }
func (*Hash) isValue()     {}

func (h *Hash) Clone() Value {
	c := &Hash{fields: make(map[string][]byte, len(h.fields))}
	for f, v := range h.fields {
		c.fields[f] = bytes.Clone(v)
	}
	return c
}

// Set stores v under field and reports whether the field is new.
func (h *Hash) Set(field, v []byte) bool {
	_, existed := h.fields[string(field)]
	h.fields[string(field)] = v
	return !existed
}

// Get returns a copy of the value stored under field.
func (h *Hash) Get(field []byte) ([]byte, bool) {
	v, ok := h.fields[string(field)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

func (h *Hash) Delete(field []byte) bool {
	if _, ok := h.fields[string(field)]; !ok {
		return false
	}
	delete(h.fields, string(field))
	return true
}

// Flatten returns field, value pairs ordered by field.
func (h *Hash) Flatten() [][]byte {
	names := make([]string, 0, len(h.fields))
	for f := range h.fields {
		names = append(names, f)
	}
	sort.Strings(names)
	out := make([][]byte, 0, 2*len(names))
	for _, f := range names {
		out = append(out, []byte(f), bytes.Clone(h.fields[f]))
	}
	return out
}
