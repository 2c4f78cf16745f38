package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Server Side Configuration
// --------------------------------------------------------------------------

// Pool describes one named shared resource pool of an entity.
type Pool struct {
	// SizeBytes is the pool's capacity.
	SizeBytes uint64 `json:"sizeBytes"`
	// Resource names the server resource the pool is carved from. Empty
	// means the entity's default resource.
	Resource string `json:"resource,omitempty"`
}

// ServerSideConfiguration is the configuration an entity is created with
// and validated against. The zero value is the "match anything"
// configuration: it validates successfully against every entity.
type ServerSideConfiguration struct {
	// DefaultResource is the resource pools without an explicit Resource
	// draw from.
	DefaultResource string `json:"defaultResource,omitempty"`
	// Pools maps pool names to their definitions.
	Pools map[string]Pool `json:"pools,omitempty"`
}

// IsEmpty reports whether cfg is the match-anything configuration.
func (cfg ServerSideConfiguration) IsEmpty() bool {
	return cfg.DefaultResource == "" && len(cfg.Pools) == 0
}

// CompatibleWith checks cfg (the caller's expectation) against actual (the
// entity's recorded configuration). An empty expectation matches anything;
// otherwise both sides must agree field for field. The returned error
// names the first divergence found.
func (cfg ServerSideConfiguration) CompatibleWith(actual ServerSideConfiguration) error {
	if cfg.IsEmpty() {
		return nil
	}
	if cfg.DefaultResource != actual.DefaultResource {
		return fmt.Errorf("default resource mismatch: expected %q, entity has %q",
			cfg.DefaultResource, actual.DefaultResource)
	}
	if len(cfg.Pools) != len(actual.Pools) {
		return fmt.Errorf("pool count mismatch: expected %d pools (%s), entity has %d (%s)",
			len(cfg.Pools), poolNames(cfg.Pools), len(actual.Pools), poolNames(actual.Pools))
	}
	for name, want := range cfg.Pools {
		got, ok := actual.Pools[name]
		if !ok {
			return fmt.Errorf("pool %q missing on entity", name)
		}
		if want != got {
			return fmt.Errorf("pool %q mismatch: expected %d bytes from %q, entity has %d bytes from %q",
				name, want.SizeBytes, want.Resource, got.SizeBytes, got.Resource)
		}
	}
	return nil
}

// Encode serializes the configuration for storage or the wire.
func (cfg ServerSideConfiguration) Encode() ([]byte, error) {
	return json.Marshal(cfg)
}

// DecodeConfig is the inverse of Encode.
func DecodeConfig(data []byte) (ServerSideConfiguration, error) {
	var cfg ServerSideConfiguration
	if len(data) == 0 {
		return cfg, nil
	}
	err := json.Unmarshal(data, &cfg)
	return cfg, err
}

func poolNames(pools map[string]Pool) string {
	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
