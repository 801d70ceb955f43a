// Package cluster partitions the key space over independent in-process
// databases. Clients see a single backend.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"kvcore/command"
	"kvcore/config"
	"kvcore/database"
	"kvcore/lib/consistenthash"
	"kvcore/lib/logger"
	"kvcore/reply"
)

// 转发层: 按 key 选择分片

// ClusterDatabase routes each command to the shard owning its keys.
type ClusterDatabase struct {
	id  string
	log *slog.Logger

	nodes      []string                // 所有分片的名称
	peerPicker *consistenthash.NodeMap // 分片选择器
	shards     map[string]*database.DB

	closed atomic.Bool
}

// MakeClusterDatabase creates props.Shards databases on one hash ring.
func MakeClusterDatabase(props *config.Properties) *ClusterDatabase {
	n := props.Shards
	if n <= 0 {
		n = 1
	}
	shardProps := *props
	if props.MaxKeyCount > 0 {
		shardProps.MaxKeyCount = (props.MaxKeyCount + n - 1) / n
	}

	id := uuid.NewString()
	cluster := &ClusterDatabase{
		id:         id,
		log:        logger.With("backend_id", id, "variant", config.VariantSharded),
		peerPicker: consistenthash.NewNodeMap(props.ShardReplicas, nil),
		shards:     make(map[string]*database.DB, n),
		nodes:      make([]string, 0, n),
	}
	for i := 0; i < n; i++ {
		name := "shard-" + strconv.Itoa(i)
		cluster.nodes = append(cluster.nodes, name)
		cluster.shards[name] = database.NewStandaloneDatabase(&shardProps)
	}
	cluster.peerPicker.AddNode(cluster.nodes...)
	cluster.log.Debug("cluster started", "shards", n)
	return cluster
}

// CmdFunc executes a command that spans shards.
type CmdFunc func(cluster *ClusterDatabase, cmd *command.Command) (reply.Reply, error)

// Close closes every shard.
func (cluster *ClusterDatabase) Close() error {
	if cluster.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, node := range cluster.nodes {
		errs = append(errs, cluster.shards[node].Close())
	}
	return errors.Join(errs...)
}

// Exec executes cmd on the owning shard, or fans it out when its keys may
// live on several shards.
func (cluster *ClusterDatabase) Exec(cmd *command.Command) (result reply.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			cluster.log.Warn("command panicked", "command", cmd.Name(), "error", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("%w executing '%s': %v", reply.ErrInternal, cmd.Name(), r)
		}
	}()
	if cluster.closed.Load() {
		return nil, fmt.Errorf("%w: cluster closed", reply.ErrBackendUnavailable)
	}
	if cmdFunc, ok := router[cmd.Op()]; ok {
		return cmdFunc(cluster, cmd)
	}
	return cluster.relay(cluster.pickShard(cmd.Key()), cmd)
}
