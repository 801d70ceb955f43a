// Package consistenthash maps keys onto named nodes with a consistent hash ring.
package consistenthash

import (
	"hash/crc32"
	"sort"
	"strconv"
)

// HashFunc defines function to generate hash code
type HashFunc func(data []byte) uint32

// NodeMap stores nodes and you can pick node from NodeMap
type NodeMap struct {
	hashFunc    HashFunc
	replicas    int
	nodeHashs   []int          // sorted
	nodehashMap map[int]string // 虚拟节点的hash值 -> 真实节点名称
}

// NewNodeMap creates a ring placing replicas virtual points per node. A nil
// fn uses crc32 IEEE.
func NewNodeMap(replicas int, fn HashFunc) *NodeMap {
	m := &NodeMap{
		hashFunc:    fn,
		replicas:    replicas,
		nodehashMap: make(map[int]string),
	}
	if m.hashFunc == nil {
		m.hashFunc = crc32.ChecksumIEEE
	}
	if m.replicas <= 0 {
		m.replicas = 1
	}
	return m
}

// IsEmpty returns if there is no node in NodeMap
func (m *NodeMap) IsEmpty() bool {
	return len(m.nodeHashs) == 0
}

// AddNode add the given nodes into consistent hash circle
func (m *NodeMap) AddNode(keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		for i := 0; i < m.replicas; i++ {
			hash := int(m.hashFunc([]byte(strconv.Itoa(i) + "#" + key)))
			// 冲突时保留先加入的节点
			if _, taken := m.nodehashMap[hash]; taken {
				continue
			}
			m.nodeHashs = append(m.nodeHashs, hash)
			m.nodehashMap[hash] = key
		}
	}
	sort.Ints(m.nodeHashs)
}

// PickNode gets the closest item in the hash to the provided key.
func (m *NodeMap) PickNode(key []byte) string {
	if m.IsEmpty() {
		return ""
	}

	hash := int(m.hashFunc(key))

	// Binary search for appropriate replica.
	idx := sort.Search(len(m.nodeHashs), func(i int) bool {
		return m.nodeHashs[i] >= hash
	})

	// 超过最大的hash值，回到环的起点
	if idx == len(m.nodeHashs) {
		idx = 0
	}

	return m.nodehashMap[m.nodeHashs[idx]]
}
