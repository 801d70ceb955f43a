package lock_test

import (
	"sync"
	"testing"

	"kvcore/lib/lock"
)

func TestRWLocks_MutualExclusion(t *testing.T) {
	locks := lock.Make(8)
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// rotate the key order, the stripe ordering must still prevent deadlock
			write := [][]byte{keys[i%3], keys[(i+1)%3]}
			locks.RWLocks(write, [][]byte{keys[(i+2)%3]})
			counter++
			locks.RWUnLocks(write, [][]byte{keys[(i+2)%3]})
		}(i)
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestRWLocks_SameKeyReadAndWrite(t *testing.T) {
	locks := lock.Make(4)
	k := []byte("k")

	// a key requested for both modes must be locked once, for writing
	locks.RWLocks([][]byte{k}, [][]byte{k})
	locks.RWUnLocks([][]byte{k}, [][]byte{k})

	locks.Lock(k)
	locks.UnLock(k)
}

func TestReadersShare(t *testing.T) {
	locks := lock.Make(1)
	k := []byte("k")

	locks.RLock(k)
	done := make(chan struct{})
	go func() {
		locks.RLock(k)
		locks.RUnLock(k)
		close(done)
	}()
	<-done
	locks.RUnLock(k)
}
