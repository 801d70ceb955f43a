// Package config holds the properties a backend is constructed from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"kvcore/lib/logger"
)

// Variant selects the concrete backend.
type Variant string

const (
	VariantMemory  Variant = "memory"
	VariantAOF     Variant = "aof"
	VariantSharded Variant = "sharded"
)

// Variants lists every backend variant, in the order benchmarks report them.
func Variants() []Variant {
	return []Variant{VariantMemory, VariantAOF, VariantSharded}
}

const (
	defaultShards               = 16
	defaultShardReplicas        = 32
	defaultAppendFilename       = "appendonly.aof"
	defaultAppendFsyncInterval  = time.Second
	defaultAppendBufferBytes    = 4 * 1024 * 1024
	defaultAppendQueueSize      = 1024
	defaultAppendEnqueueTimeout = 500 * time.Millisecond
)

// Duration is a time.Duration written as a Go duration string in JSON ("1s", "250ms").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Properties configures one backend instance.
type Properties struct {
	Variant              Variant  `json:"variant,omitempty"`
	DefaultKeyTTL        Duration `json:"default_key_ttl,omitempty"`
	MaxKeyCount          int      `json:"max_key_count,omitempty"`
	KeepEmptyCollections bool     `json:"keep_empty_collections,omitempty"`
	ActiveExpireInterval Duration `json:"active_expire_interval,omitempty"`

	Shards        int `json:"shards,omitempty"`
	ShardReplicas int `json:"shard_replicas,omitempty"`

	AppendFilename       string   `json:"append_filename,omitempty"`
	AppendFsyncInterval  Duration `json:"append_fsync_interval,omitempty"`
	AppendBufferBytes    int      `json:"append_buffer_bytes,omitempty"`
	AppendQueueSize      int      `json:"append_queue_size,omitempty"`
	AppendEnqueueTimeout Duration `json:"append_enqueue_timeout,omitempty"`

	Log logger.Settings `json:"log,omitempty"`
}

// Default returns the properties of an in-memory backend with no expiration
// defaults and no key limit.
func Default() Properties {
	return Properties{
		Variant:              VariantMemory,
		Shards:               defaultShards,
		ShardReplicas:        defaultShardReplicas,
		AppendFilename:       defaultAppendFilename,
		AppendFsyncInterval:  Duration(defaultAppendFsyncInterval),
		AppendBufferBytes:    defaultAppendBufferBytes,
		AppendQueueSize:      defaultAppendQueueSize,
		AppendEnqueueTimeout: Duration(defaultAppendEnqueueTimeout),
		Log:                  logger.Settings{Level: "info", Format: "text"},
	}
}

// Merge applies non-zero values from source into p.
func (p *Properties) Merge(source *Properties) {
	if source.Variant != "" {
		p.Variant = source.Variant
	}
	if source.DefaultKeyTTL > 0 {
		p.DefaultKeyTTL = source.DefaultKeyTTL
	}
	if source.MaxKeyCount > 0 {
		p.MaxKeyCount = source.MaxKeyCount
	}
	if source.KeepEmptyCollections {
		p.KeepEmptyCollections = true
	}
	if source.ActiveExpireInterval > 0 {
		p.ActiveExpireInterval = source.ActiveExpireInterval
	}
	if source.Shards > 0 {
		p.Shards = source.Shards
	}
	if source.ShardReplicas > 0 {
		p.ShardReplicas = source.ShardReplicas
	}
	if source.AppendFilename != "" {
		p.AppendFilename = source.AppendFilename
	}
	if source.AppendFsyncInterval > 0 {
		p.AppendFsyncInterval = source.AppendFsyncInterval
	}
	if source.AppendBufferBytes > 0 {
		p.AppendBufferBytes = source.AppendBufferBytes
	}
	if source.AppendQueueSize > 0 {
		p.AppendQueueSize = source.AppendQueueSize
	}
	if source.AppendEnqueueTimeout > 0 {
		p.AppendEnqueueTimeout = source.AppendEnqueueTimeout
	}
	if source.Log.Level != "" {
		p.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		p.Log.Format = source.Log.Format
	}
}

// Validate rejects properties no backend can be built from.
func (p *Properties) Validate() error {
	switch p.Variant {
	case VariantMemory, VariantAOF, VariantSharded:
	default:
		return fmt.Errorf("unknown backend variant %q", p.Variant)
	}
	if p.MaxKeyCount < 0 {
		return fmt.Errorf("max_key_count must not be negative")
	}
	if p.Variant == VariantSharded && p.Shards <= 0 {
		return fmt.Errorf("shards must be positive")
	}
	if p.Variant == VariantAOF && strings.TrimSpace(p.AppendFilename) == "" {
		return fmt.Errorf("append_filename is required for the aof backend")
	}
	return nil
}

// Load reads a JSON properties file, merges it over Default and validates the result.
func Load(filename string) (*Properties, error) {
	props := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Properties
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	props.Merge(&loaded)
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return &props, nil
}
