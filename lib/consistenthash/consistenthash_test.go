package consistenthash_test

import (
	"strconv"
	"testing"

	"kvcore/lib/consistenthash"
)

func TestPickNode_Stable(t *testing.T) {
	m := consistenthash.NewNodeMap(32, nil)
	if got := m.PickNode([]byte("k")); got != "" {
		t.Errorf("PickNode() on empty ring = %q, want empty", got)
	}

	m.AddNode("a", "b", "c", "")
	for i := 0; i < 100; i++ {
		key := []byte("key" + strconv.Itoa(i))
		first := m.PickNode(key)
		if first == "" {
			t.Fatalf("PickNode(%s) = empty", key)
		}
		if again := m.PickNode(key); again != first {
			t.Errorf("PickNode(%s) = %q then %q", key, first, again)
		}
	}
}

func TestPickNode_Spread(t *testing.T) {
	m := consistenthash.NewNodeMap(32, nil)
	m.AddNode("a", "b", "c", "d")

	counts := make(map[string]int)
	for i := 0; i < 4000; i++ {
		counts[m.PickNode([]byte("key"+strconv.Itoa(i)))]++
	}
	if len(counts) != 4 {
		t.Fatalf("keys landed on %d nodes, want 4: %v", len(counts), counts)
	}
	for node, n := range counts {
		if n < 400 {
			t.Errorf("node %s got %d of 4000 keys", node, n)
		}
	}
}

func TestPickNode_CustomHash(t *testing.T) {
	// with one replica and an identity-like hash the ring order is predictable
	hash := func(data []byte) uint32 {
		n, _ := strconv.Atoi(string(data[len(data)-1:]))
		return uint32(n * 10)
	}
	m := consistenthash.NewNodeMap(1, hash)
	m.AddNode("1", "5")

	tests := []struct {
		key  string
		want string
	}{
		{key: "x0", want: "1"},
		{key: "x1", want: "1"},
		{key: "x3", want: "5"},
		{key: "x6", want: "1"}, // wraps around
	}
	for _, tt := range tests {
		if got := m.PickNode([]byte(tt.key)); got != tt.want {
			t.Errorf("PickNode(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
