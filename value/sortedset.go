package value

import (
	"bytes"
	"cmp"
	"slices"
	"strconv"
)

// Element is a sorted set member with its score.
type Element struct {
	Member []byte
	Score  float64
}

// CompareElements orders by score ascending, then member bytes ascending.
// Every backend uses this order for range results.
func CompareElements(a, b Element) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	return bytes.Compare(a.Member, b.Member)
}

// FormatScore renders a score the way ZSCORE and WITHSCORES report it.
func FormatScore(f float64) []byte {
	return strconv.AppendFloat(nil, f, 'g', -1, 64)
}

// SortedSet keeps members ordered by (score, member). Scores must not be NaN.
type SortedSet struct {
	scores   map[string]float64
	elements []Element
}

func NewSortedSet() *SortedSet {
	return &SortedSet{scores: make(map[string]float64)}
}

func (z *SortedSet) Kind() Kind { return KindSortedSet }
func (z *SortedSet) Len() int   { return len(z.elements) }
func (*SortedSet) isValue()     {}

func (z *SortedSet) Clone() Value {
	c := &SortedSet{
		scores:   make(map[string]float64, len(z.scores)),
		elements: make([]Element, len(z.elements)),
	}
	for m, s := range z.scores {
		c.scores[m] = s
	}
	for i, e := range z.elements {
		c.elements[i] = Element{Member: bytes.Clone(e.Member), Score: e.Score}
	}
	return c
}

// Add sets the score of member and reports whether the member is new.
func (z *SortedSet) Add(member []byte, score float64) bool {
	old, existed := z.scores[string(member)]
	if existed {
		if old == score {
			return false
		}
		z.removeElement(Element{Member: member, Score: old})
	}
	z.scores[string(member)] = score
	e := Element{Member: member, Score: score}
	i, _ := slices.BinarySearchFunc(z.elements, e, CompareElements)
	z.elements = slices.Insert(z.elements, i, e)
	return !existed
}

// Remove deletes member and reports whether it was present.
func (z *SortedSet) Remove(member []byte) bool {
	score, ok := z.scores[string(member)]
	if !ok {
		return false
	}
	delete(z.scores, string(member))
	z.removeElement(Element{Member: member, Score: score})
	return true
}

func (z *SortedSet) removeElement(e Element) {
	if i, found := slices.BinarySearchFunc(z.elements, e, CompareElements); found {
		z.elements = slices.Delete(z.elements, i, i+1)
	}
}

func (z *SortedSet) Score(member []byte) (float64, bool) {
	s, ok := z.scores[string(member)]
	return s, ok
}

// Rank returns the 0-based position of member in ascending order.
func (z *SortedSet) Rank(member []byte) (int, bool) {
	score, ok := z.scores[string(member)]
	if !ok {
		return 0, false
	}
	i, _ := slices.BinarySearchFunc(z.elements, Element{Member: member, Score: score}, CompareElements)
	return i, true
}

// Range returns copies of the elements between inclusive rank offsets.
func (z *SortedSet) Range(start, stop int64) []Element {
	lo, hi, ok := ClampRange(start, stop, len(z.elements))
	if !ok {
		return []Element{}
	}
	return cloneElements(z.elements[lo : hi+1])
}

// RangeByScore returns copies of the elements with min <= score <= max.
func (z *SortedSet) RangeByScore(min, max float64) []Element {
	lo, _ := slices.BinarySearchFunc(z.elements, min, func(e Element, t float64) int {
		if e.Score < t {
			return -1
		}
		return 1
	})
	out := []Element{}
	for i := lo; i < len(z.elements) && z.elements[i].Score <= max; i++ {
		out = append(out, z.elements[i])
	}
	return cloneElements(out)
}

func cloneElements(src []Element) []Element {
	out := make([]Element, len(src))
	for i, e := range src {
		out[i] = Element{Member: bytes.Clone(e.Member), Score: e.Score}
	}
	return out
}
