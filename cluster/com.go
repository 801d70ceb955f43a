package cluster

import (
	"kvcore/command"
	"kvcore/reply"
)

// 负责把命令转发给分片

func (cluster *ClusterDatabase) pickShard(key []byte) string {
	return cluster.peerPicker.PickNode(key)
}

// relay executes cmd on one shard.
func (cluster *ClusterDatabase) relay(node string, cmd *command.Command) (reply.Reply, error) {
	return cluster.shards[node].Exec(cmd)
}

// broadcast executes cmd on every shard and stops at the first error.
func (cluster *ClusterDatabase) broadcast(cmd *command.Command) (map[string]reply.Reply, error) {
	result := make(map[string]reply.Reply, len(cluster.nodes))
	for _, node := range cluster.nodes {
		r, err := cluster.relay(node, cmd)
		if err != nil {
			return nil, err
		}
		result[node] = r
	}
	return result, nil
}

// keyGroup holds the keys owned by one shard and their positions in the original command.
type keyGroup struct {
	keys      [][]byte
	positions []int
}

// groupByShard splits keys by owning shard, keeping argument order within each group.
func (cluster *ClusterDatabase) groupByShard(keys [][]byte) map[string]*keyGroup {
	groups := make(map[string]*keyGroup)
	for i, key := range keys {
		node := cluster.pickShard(key)
		g, ok := groups[node]
		if !ok {
			g = &keyGroup{}
			groups[node] = g
		}
		g.keys = append(g.keys, key)
		g.positions = append(g.positions, i)
	}
	return groups
}
