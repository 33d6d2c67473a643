package valuation

import (
	"time"

	"github.com/google/uuid"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// StrategyExpSmoothing is the registry name of the exponential smoothing
// strategy.
const StrategyExpSmoothing = "exp_smoothing"

func init() {
	Register(StrategyExpSmoothing, func(cfg config.StrategyConfig) (Strategy, error) {
		return NewExpSmoothing(cfg), nil
	})
}

// ExpSmoothing values each asset by exponentially smoothing its price series
// and treating the smoothed level as the forecast.
type ExpSmoothing struct {
	computer Computer
	version  string
}

// NewExpSmoothing builds the strategy from configuration.
func NewExpSmoothing(cfg config.StrategyConfig) *ExpSmoothing {
	return &ExpSmoothing{
		computer: Computer{
			Selector:       VariantSelector{Preference: cfg.VariantPreference},
			Alpha:          cfg.Alpha,
			LookbackDays:   cfg.LookbackDays,
			MinMarketPrice: cfg.MinMarketPrice,
		},
		version: versionOrDefault(cfg.Version),
	}
}

func (s *ExpSmoothing) Name() string { return StrategyExpSmoothing }

func (s *ExpSmoothing) Version() string { return s.version }

// ComputeCandidates evaluates every asset in the history snapshot and returns
// the records for those that pass the eligibility rules.
func (s *ExpSmoothing) ComputeCandidates(history storage.AssetHistory, runDate time.Time, runID uuid.UUID) []storage.ValuationRecord {
	records := make([]storage.ValuationRecord, 0, len(history))
	for _, assetID := range sortedAssetIDs(history) {
		record, ok := s.computer.Compute(assetID, history[assetID], runDate)
		if !ok {
			continue
		}
		record.StrategyName = s.Name()
		record.StrategyVersion = s.version
		record.RunID = runID
		records = append(records, record)
	}
	return records
}
