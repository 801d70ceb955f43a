// Package lock provides striped read/write locks keyed by byte strings.
package lock

import (
	"hash/fnv"
	"sort"
	"sync"
)

// Locks hashes keys onto a fixed table of RWMutexes. Two keys may share a
// stripe; that only costs concurrency, never correctness.
type Locks struct {
	table []*sync.RWMutex
}

// Make creates a lock table with at least tableSize stripes.
func Make(tableSize int) *Locks {
	if tableSize <= 0 {
		tableSize = 1
	}
	table := make([]*sync.RWMutex, tableSize)
	for i := range table {
		table[i] = &sync.RWMutex{}
	}
	return &Locks{table: table}
}

func (locks *Locks) spread(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32() % uint32(len(locks.table))
}

// Lock obtains the exclusive lock for key.
func (locks *Locks) Lock(key []byte) {
	locks.table[locks.spread(key)].Lock()
}

func (locks *Locks) UnLock(key []byte) {
	locks.table[locks.spread(key)].Unlock()
}

// RLock obtains the shared lock for key.
func (locks *Locks) RLock(key []byte) {
	locks.table[locks.spread(key)].RLock()
}

func (locks *Locks) RUnLock(key []byte) {
	locks.table[locks.spread(key)].RUnlock()
}

// stripes returns the distinct stripe indexes of keys in ascending order, and
// for each whether any key in it requested write access.
func (locks *Locks) stripes(writeKeys, readKeys [][]byte) ([]uint32, map[uint32]bool) {
	mode := make(map[uint32]bool, len(writeKeys)+len(readKeys))
	for _, k := range writeKeys {
		mode[locks.spread(k)] = true
	}
	for _, k := range readKeys {
		i := locks.spread(k)
		if _, ok := mode[i]; !ok {
			mode[i] = false
		}
	}
	indices := make([]uint32, 0, len(mode))
	for i := range mode {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })
	return indices, mode
}

// RWLocks locks writeKeys exclusively and readKeys shared. Stripes are taken in
// ascending order so concurrent multi-key callers cannot deadlock. A key in
// both lists is locked for writing.
func (locks *Locks) RWLocks(writeKeys, readKeys [][]byte) {
	indices, mode := locks.stripes(writeKeys, readKeys)
	for _, i := range indices {
		if mode[i] {
			locks.table[i].Lock()
		} else {
			locks.table[i].RLock()
		}
	}
}

// RWUnLocks releases locks taken by RWLocks with the same arguments.
func (locks *Locks) RWUnLocks(writeKeys, readKeys [][]byte) {
	indices, mode := locks.stripes(writeKeys, readKeys)
	for j := len(indices) - 1; j >= 0; j-- {
		i := indices[j]
		if mode[i] {
			locks.table[i].Unlock()
		} else {
			locks.table[i].RUnlock()
		}
	}
}

// LockAll takes every stripe exclusively, in ascending order.
func (locks *Locks) LockAll() {
	for _, mu := range locks.table {
		mu.Lock()
	}
}

func (locks *Locks) UnLockAll() {
	for i := len(locks.table) - 1; i >= 0; i-- {
		locks.table[i].Unlock()
	}
}
