// Package engine builds the backend variant named in the configuration.
package engine

import (
	"fmt"

	"kvcore/aof"
	"kvcore/cluster"
	"kvcore/config"
	"kvcore/database"
	"kvcore/interface/backend"
	"kvcore/lib/logger"
)

// New validates props and constructs the selected backend.
func New(props *config.Properties) (backend.Backend, error) {
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend properties: %w", err)
	}

	var (
		b   backend.Backend
		err error
	)
	switch props.Variant {
	case config.VariantMemory:
		b = database.NewStandaloneDatabase(props)
	case config.VariantAOF:
		b, err = aof.MakeAofDatabase(props)
	case config.VariantSharded:
		b = cluster.MakeClusterDatabase(props)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("backend ready", "variant", props.Variant,
		"default_key_ttl", props.DefaultKeyTTL, "max_key_count", props.MaxKeyCount)
	return b, nil
}
