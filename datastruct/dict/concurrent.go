// Package dict provides the concurrent map that holds a backend's key table.
package dict

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Consumer is used to traverse dict, if it returns false the traversal will be broken
type Consumer[V any] func(key string, val V) bool

// ConcurrentDict is a map split into independently locked shards.
type ConcurrentDict[V any] struct {
	table []*shard[V]
	count atomic.Int64
}

type shard[V any] struct {
	m  map[string]V
	mu sync.RWMutex
}

func computeCapacity(param int) int {
	if param <= 16 {
		return 16
	}
	n := param - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// MakeConcurrent creates a dict with shardCount rounded up to a power of two.
func MakeConcurrent[V any](shardCount int) *ConcurrentDict[V] {
	shardCount = computeCapacity(shardCount)
	table := make([]*shard[V], shardCount)
	for i := range table {
		table[i] = &shard[V]{m: make(map[string]V)}
	}
	return &ConcurrentDict[V]{table: table}
}

func (d *ConcurrentDict[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return d.table[h.Sum32()&uint32(len(d.table)-1)]
}

// Get returns the binding value and whether the key exists
func (d *ConcurrentDict[V]) Get(key string) (val V, exists bool) {
	s := d.getShard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, exists = s.m[key]
	return
}

// Len returns the number of keys
func (d *ConcurrentDict[V]) Len() int {
	return int(d.count.Load())
}

// Put puts key value into dict and returns the number of new inserted key-value
func (d *ConcurrentDict[V]) Put(key string, val V) (result int) {
	s := d.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[key]; ok {
		s.m[key] = val
		return 0
	}
	d.count.Add(1)
	s.m[key] = val
	return 1
}

// Remove removes the key and returns the number of deleted key-value
func (d *ConcurrentDict[V]) Remove(key string) (result int) {
	s := d.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[key]; ok {
		delete(s.m, key)
		d.count.Add(-1)
		return 1
	}
	return 0
}

// RemoveIf removes key only while pred holds for its current value, checked under the shard lock.
func (d *ConcurrentDict[V]) RemoveIf(key string, pred func(V) bool) bool {
	s := d.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if val, ok := s.m[key]; ok && pred(val) {
		delete(s.m, key)
		d.count.Add(-1)
		return true
	}
	return false
}

// ForEach traverses the dict. It holds one shard's read lock at a time, so
// consumer must not write to the dict.
func (d *ConcurrentDict[V]) ForEach(consumer Consumer[V]) {
	for _, s := range d.table {
		s.mu.RLock()
		keep := func() bool {
			defer s.mu.RUnlock()
			for key, value := range s.m {
				if !consumer(key, value) {
					return false
				}
			}
			return true
		}()
		if !keep {
			break
		}
	}
}

// RandomKeys samples up to limit keys, visiting shards from a rotating offset.
func (d *ConcurrentDict[V]) RandomKeys(limit int, offset int) []string {
	out := make([]string, 0, limit)
	n := len(d.table)
	for i := 0; i < n && len(out) < limit; i++ {
		s := d.table[(offset+i)%n]
		s.mu.RLock()
		for key := range s.m {
			out = append(out, key)
			if len(out) >= limit {
				break
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Clear removes all keys in dict
func (d *ConcurrentDict[V]) Clear() {
	for _, s := range d.table {
		s.mu.Lock()
		d.count.Add(-int64(len(s.m)))
		s.m = make(map[string]V)
		s.mu.Unlock()
	}
}
