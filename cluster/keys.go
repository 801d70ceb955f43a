package cluster

import (
	"bytes"
	"slices"

	"kvcore/command"
	"kvcore/config"
	"kvcore/database"
	"kvcore/reply"
	"kvcore/value"
)

var router = makeRouter()

func makeRouter() map[command.Op]CmdFunc {
	return map[command.Op]CmdFunc{
		command.OpDel:        sumByShard,
		command.OpExists:     sumByShard,
		command.OpMGet:       MGet,
		command.OpKeys:       Keys,
		command.OpDBSize:     DBSize,
		command.OpFlushDB:    FlushDB,
		command.OpInfo:       Info,
		command.OpSDiff:      SDiff,
		command.OpSDiffStore: SDiffStore,
	}
}

// sumByShard runs DEL or EXISTS per shard and adds up the counts.
func sumByShard(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	var total int64
	for node, group := range cluster.groupByShard(cmd.Keys()) {
		sub, err := command.New(cmd.Op(), group.keys...)
		if err != nil {
			return nil, err
		}
		r, err := cluster.relay(node, sub)
		if err != nil {
			return nil, err
		}
		total += r.(reply.IntReply).Code
	}
	return reply.MakeIntReply(total), nil
}

// MGet gathers values from every shard in argument order.
func MGet(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	keys := cmd.Keys()
	result := make([][]byte, len(keys))
	for node, group := range cluster.groupByShard(keys) {
		sub, err := command.New(command.OpMGet, group.keys...)
		if err != nil {
			return nil, err
		}
		r, err := cluster.relay(node, sub)
		if err != nil {
			return nil, err
		}
		for i, v := range r.(reply.MultiBulkReply).Args {
			result[group.positions[i]] = v
		}
	}
	return reply.MakeMultiBulkReply(result), nil
}

// Keys merges the key lists of all shards.
func Keys(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	replies, err := cluster.broadcast(cmd)
	if err != nil {
		return nil, err
	}
	var all [][]byte
	for _, r := range replies {
		all = append(all, r.(reply.MultiBulkReply).Args...)
	}
	slices.SortFunc(all, bytes.Compare)
	if all == nil {
		all = [][]byte{}
	}
	return reply.MakeMultiBulkReply(all), nil
}

// DBSize sums the shard sizes.
func DBSize(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	replies, err := cluster.broadcast(cmd)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, r := range replies {
		total += r.(reply.IntReply).Code
	}
	return reply.MakeIntReply(total), nil
}

// FlushDB removes all data on every shard
func FlushDB(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	// 遇到一个错误就结束
	if _, err := cluster.broadcast(cmd); err != nil {
		return nil, err
	}
	return reply.MakeOkReply(), nil
}

// Info reports the totals over all shards under the cluster's own id.
func Info(cluster *ClusterDatabase, _ *command.Command) (reply.Reply, error) {
	keys, expires := 0, 0
	for _, node := range cluster.nodes {
		k, e := cluster.shards[node].Stats()
		keys += k
		expires += e
	}
	body := database.FormatInfo(string(config.VariantSharded), cluster.id, keys, expires)
	return reply.MakeBulkReply([]byte(body)), nil
}

// diff reads each source set from its shard and subtracts locally. A source
// of another variant fails the whole command.
func (cluster *ClusterDatabase) diff(keys [][]byte) (*value.Set, error) {
	sets := make([]*value.Set, len(keys))
	for i, key := range keys {
		sub, err := command.New(command.OpSMembers, key)
		if err != nil {
			return nil, err
		}
		r, err := cluster.relay(cluster.pickShard(key), sub)
		if err != nil {
			return nil, err
		}
		sets[i] = value.NewSet(r.(reply.MultiBulkReply).Args...)
	}
	return sets[0].Diff(sets[1:]...), nil
}

// SDiff computes the difference of sets that may live on different shards.
func SDiff(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	result, err := cluster.diff(cmd.Keys())
	if err != nil {
		return nil, err
	}
	return reply.MakeMultiBulkReply(result.Members()), nil
}

// SDiffStore computes the difference across shards and writes it on the
// destination's shard.
func SDiffStore(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error) {
	result, err := cluster.diff(cmd.Keys()[1:])
	if err != nil {
		return nil, err
	}
	dest := cmd.Key()
	return cluster.shards[cluster.pickShard(dest)].StoreMembers(dest, result.Members())
}
