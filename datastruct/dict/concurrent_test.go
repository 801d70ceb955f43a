package dict

import (
	"strconv"
	"sync"
	"testing"
)

func TestComputeCapacity(t *testing.T) {
	tests := []struct{ in, want int }{
		{in: 0, want: 16},
		{in: 16, want: 16},
		{in: 17, want: 32},
		{in: 1000, want: 1024},
	}
	for _, tt := range tests {
		if got := computeCapacity(tt.in); got != tt.want {
			t.Errorf("computeCapacity(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentPutRemove(t *testing.T) {
	d := MakeConcurrent[int](0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + strconv.Itoa(i)
			d.Put(key, i)
			d.Put(key, i+1)
		}(i)
	}
	wg.Wait()

	if d.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", d.Len())
	}
	if v, ok := d.Get("k7"); !ok || v != 8 {
		t.Errorf("Get(k7) = %d, %v, want 8, true", v, ok)
	}
	if d.Remove("k7") != 1 || d.Remove("k7") != 0 {
		t.Error("Remove(k7) should delete exactly once")
	}
	if d.RemoveIf("k8", func(v int) bool { return v > 100 }) {
		t.Error("RemoveIf() removed a key whose predicate was false")
	}

	seen := 0
	d.ForEach(func(key string, val int) bool {
		seen++
		return true
	})
	if seen != 99 {
		t.Errorf("ForEach visited %d keys, want 99", seen)
	}

	if got := len(d.RandomKeys(10, 3)); got != 10 {
		t.Errorf("RandomKeys(10) returned %d keys", got)
	}

	d.Clear()
	if d.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", d.Len())
	}
}
