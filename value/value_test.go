package value_test

import (
	"bytes"
	"testing"

	"kvcore/value"
)

func TestList_PushPopBothEnds(t *testing.T) {
	l := value.NewList()
	l.PushFront([]byte("b"))
	l.PushFront([]byte("a"))
	l.PushBack([]byte("c"))

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := string(l.Index(i)); got != want {
			t.Errorf("Index(%d) = %q, want %q", i, got, want)
		}
	}

	if got := string(l.PopBack()); got != "c" {
		t.Errorf("PopBack() = %q, want c", got)
	}
	// tail is now empty, the next back pop has to come from head
	if got := string(l.PopBack()); got != "b" {
		t.Errorf("PopBack() = %q, want b", got)
	}
	if got := string(l.PopFront()); got != "a" {
		t.Errorf("PopFront() = %q, want a", got)
	}
	if got := l.PopFront(); got != nil {
		t.Errorf("PopFront() on empty list = %q, want nil", got)
	}
}

func TestList_Range(t *testing.T) {
	l := value.NewList([]byte("a"), []byte("b"), []byte("c"), []byte("d"))

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{name: "all", start: 0, stop: -1, want: []string{"a", "b", "c", "d"}},
		{name: "middle", start: 1, stop: 2, want: []string{"b", "c"}},
		{name: "negative start", start: -2, stop: -1, want: []string{"c", "d"}},
		{name: "stop past end", start: 2, stop: 100, want: []string{"c", "d"}},
		{name: "start after stop", start: 3, stop: 1, want: []string{}},
		{name: "start past end", start: 10, stop: 20, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Range(tt.start, tt.stop)
			if len(got) != len(tt.want) {
				t.Fatalf("Range(%d, %d) returned %d items, want %d", tt.start, tt.stop, len(got), len(tt.want))
			}
			for i := range got {
				if string(got[i]) != tt.want[i] {
					t.Errorf("Range(%d, %d)[%d] = %q, want %q", tt.start, tt.stop, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestList_RangeReturnsCopies(t *testing.T) {
	l := value.NewList([]byte("a"))
	got := l.Range(0, -1)
	got[0][0] = 'z'
	if string(l.Index(0)) != "a" {
		t.Errorf("mutating a Range result changed the list: %q", l.Index(0))
	}
}

func TestSortedSet_OrderIndependentOfInsertion(t *testing.T) {
	type pair struct {
		member string
		score  float64
	}
	inserts := [][]pair{
		{{"c", 2}, {"b", 1}, {"a", 1}, {"d", -1}},
		{{"a", 1}, {"d", -1}, {"c", 2}, {"b", 1}},
		{{"d", -1}, {"c", 2}, {"b", 1}, {"a", 1}},
	}
	want := []string{"d", "a", "b", "c"}

	for _, order := range inserts {
		z := value.NewSortedSet()
		for _, p := range order {
			z.Add([]byte(p.member), p.score)
		}
		got := z.Range(0, -1)
		for i, e := range got {
			if string(e.Member) != want[i] {
				t.Fatalf("Range order = %v, want %v", members(got), want)
			}
		}
	}
}

func TestSortedSet_UpdateScoreMoves(t *testing.T) {
	z := value.NewSortedSet()
	if !z.Add([]byte("a"), 1) {
		t.Error("Add(a) = false, want true for new member")
	}
	z.Add([]byte("b"), 2)
	if z.Add([]byte("a"), 3) {
		t.Error("Add(a) = true on update, want false")
	}
	if rank, _ := z.Rank([]byte("a")); rank != 1 {
		t.Errorf("Rank(a) = %d, want 1", rank)
	}
	if z.Len() != 2 {
		t.Errorf("Len() = %d, want 2", z.Len())
	}
	if !z.Remove([]byte("b")) || z.Len() != 1 {
		t.Errorf("Remove(b) did not shrink the set, Len() = %d", z.Len())
	}
}

func TestSortedSet_RangeByScore(t *testing.T) {
	z := value.NewSortedSet()
	z.Add([]byte("a"), 1)
	z.Add([]byte("b"), 2)
	z.Add([]byte("c"), 2)
	z.Add([]byte("d"), 5)

	got := members(z.RangeByScore(2, 4))
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("RangeByScore(2, 4) = %v, want [b c]", got)
	}
}

func TestSet_Diff(t *testing.T) {
	a := value.NewSet([]byte("1"), []byte("2"), []byte("3"))
	b := value.NewSet([]byte("2"))

	diff := a.Diff(b, nil)
	got := diff.Members()
	if len(got) != 2 || string(got[0]) != "1" || string(got[1]) != "3" {
		t.Errorf("Diff() = %q, want [1 3]", got)
	}

	var absent *value.Set
	if absent.Diff(a).Len() != 0 {
		t.Error("Diff on absent set should be empty")
	}
}

func TestEqual(t *testing.T) {
	h1 := value.NewHash()
	h1.Set([]byte("f"), []byte("v"))
	h2 := h1.Clone()

	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{name: "scalars", a: value.Scalar("x"), b: value.Scalar("x"), want: true},
		{name: "different scalars", a: value.Scalar("x"), b: value.Scalar("y"), want: false},
		{name: "kinds differ", a: value.Scalar("x"), b: value.NewList([]byte("x")), want: false},
		{name: "cloned hash", a: h1, b: h2, want: true},
		{name: "sets", a: value.NewSet([]byte("a"), []byte("b")), b: value.NewSet([]byte("b"), []byte("a")), want: true},
		{name: "lists order matters", a: value.NewList([]byte("a"), []byte("b")), b: value.NewList([]byte("b"), []byte("a")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value.Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScalar_Int(t *testing.T) {
	if n, ok := value.Scalar("-42").Int(); !ok || n != -42 {
		t.Errorf("Int() = %d, %v, want -42, true", n, ok)
	}
	if _, ok := value.Scalar("4x").Int(); ok {
		t.Error("Int() on non numeric = true, want false")
	}
	if !bytes.Equal(value.FromInt(11), []byte("11")) {
		t.Errorf("FromInt(11) = %q", value.FromInt(11))
	}
}

func members(elems []value.Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = string(e.Member)
	}
	return out
}
