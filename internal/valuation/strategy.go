package valuation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// Strategy computes the valuation candidates for one run date. Candidates
// carry the strategy's identity so records from different strategies never
// collide in the valuation table.
type Strategy interface {
	Name() string
	Version() string
	ComputeCandidates(history storage.AssetHistory, runDate time.Time, runID uuid.UUID) []storage.ValuationRecord
}

// Factory builds a strategy from configuration.
type Factory func(cfg config.StrategyConfig) (Strategy, error)

var registry = map[string]Factory{}

// Register adds a strategy factory under a unique name. Panics on duplicate
// names so wiring mistakes surface at startup.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic("valuation: strategy already registered: " + name)
	}
	registry[name] = factory
}

// NewStrategy resolves the configured strategy from the registry once at
// startup.
func NewStrategy(cfg config.StrategyConfig) (Strategy, error) {
	factory, ok := registry[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %s)", cfg.Name, strings.Join(RegisteredStrategies(), ", "))
	}
	return factory(cfg)
}

// RegisteredStrategies lists registered strategy names sorted alphabetically.
func RegisteredStrategies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortedAssetIDs fixes the per-asset iteration order. Order does not affect
// any single record, but deterministic output simplifies testing and diffing.
func sortedAssetIDs(history storage.AssetHistory) []string {
	ids := make([]string, 0, len(history))
	for id := range history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func versionOrDefault(version string) string {
	if version == "" {
		return "v1"
	}
	return version
}
