package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricePoint is one daily market price observation for an (asset, variant) pair.
type PricePoint struct {
	Date    time.Time
	AssetID string
	Variant string
	Price   float64
}

// VariantHistory maps a variant name to its date-ordered price series.
type VariantHistory map[string][]PricePoint

// AssetHistory maps an asset id to its per-variant price series.
type AssetHistory map[string]VariantHistory

// HistoryFilter narrows the eligible price history fetched for a run.
type HistoryFilter struct {
	Start          time.Time
	End            time.Time
	MinMarketPrice float64
	Variants       []string
	RarityFilter   string
}

// ValuationRecord is one persisted valuation for an asset on a date.
// At most one record exists per (val_date, asset_id, strategy_name, strategy_version).
type ValuationRecord struct {
	ValDate         time.Time
	AssetID         string
	MarketPrice     float64
	SmoothPrice     float64
	ForecastPrice   float64
	Gap             float64
	GapPct          float64
	Confidence      float64
	Rationale       json.RawMessage
	StrategyName    string
	StrategyVersion string
	RunID           uuid.UUID
	TSCreated       time.Time
}

// RunRecord is the audit row written once per completed valuation run.
type RunRecord struct {
	RunID           uuid.UUID
	RunDate         time.Time
	StrategyName    string
	StrategyVersion string
	StartedAt       time.Time
	InsertedCount   int
	Note            string
}

// ValuationView joins a valuation with the latest card metadata for API listings.
type ValuationView struct {
	ValDate         time.Time
	AssetID         string
	Name            string
	SetName         string
	Rarity          string
	Artist          string
	MarketPrice     float64
	SmoothPrice     float64
	ForecastPrice   float64
	Gap             float64
	GapPct          float64
	Confidence      float64
	StrategyName    string
	StrategyVersion string
	RunID           uuid.UUID
}

// CardMetadata is one daily snapshot of a card document from the universe feed.
type CardMetadata struct {
	AssetID        string
	SnapshotDate   time.Time
	PTCGCardID     string
	Name           string
	SetID          string
	SetName        string
	SetReleaseDate *time.Time
	Number         string
	Rarity         string
	Artist         string
	ImagesJSON     json.RawMessage
	RawJSON        json.RawMessage
	TSCreated      time.Time
}

// CardDoc pairs an asset with its most recent raw card document.
type CardDoc struct {
	AssetID string
	Raw     json.RawMessage
}

// TrackedAsset is a curated asset the valuation pipeline follows.
type TrackedAsset struct {
	AssetID  string
	IsActive bool
	Tags     json.RawMessage
	TSAdded  time.Time
}

// TCGPriceSnapshot is one per-variant daily price row from the TCGplayer feed.
type TCGPriceSnapshot struct {
	SnapshotDate    time.Time
	SnapshotTS      time.Time
	AssetID         string
	Variant         string
	Currency        string
	Market          *decimal.Decimal
	Low             *decimal.Decimal
	Mid             *decimal.Decimal
	High            *decimal.Decimal
	DirectLow       *decimal.Decimal
	URL             string
	SourceUpdatedAt *time.Time
	Extra           json.RawMessage
}

// CardmarketSnapshot is one daily price row from the Cardmarket feed.
type CardmarketSnapshot struct {
	SnapshotDate time.Time
	SnapshotTS   time.Time
	AssetID      string
	Variant      string
	Currency     string
	Avg1         *decimal.Decimal
	Avg7         *decimal.Decimal
	Avg30        *decimal.Decimal
	LowPrice     *decimal.Decimal
	TrendPrice   *decimal.Decimal
	Extra        json.RawMessage
}

// Proposal is a pending or decided trade suggestion surfaced for review.
type Proposal struct {
	ProposalID     uuid.UUID
	ProposalDate   time.Time
	TSCreated      time.Time
	Action         string
	AssetID        string
	Qty            int
	TargetPrice    decimal.Decimal
	Confidence     float64
	Rationale      json.RawMessage
	Status         string
	Decision       *string
	DecisionReason *string
	DecidedTS      *time.Time
}

// Holding is a portfolio position in one asset.
type Holding struct {
	AssetID   string
	Qty       int
	AvgCost   decimal.Decimal
	TSUpdated time.Time
}

// PortfolioRow combines a holding with its latest valuation.
type PortfolioRow struct {
	AssetID       string
	Name          string
	Qty           int
	AvgCost       decimal.Decimal
	ValDate       time.Time
	MarketPrice   float64
	ForecastPrice float64
	GapPct        float64
	Confidence    float64
}

// Proposal lifecycle states.
const (
	ProposalStatusPending = "PENDING"
	ProposalStatusDecided = "DECIDED"
	ProposalActionBuy     = "BUY"
	ProposalActionSell    = "SELL"
	ProposalDecisionYes   = "APPROVED"
	ProposalDecisionNo    = "REJECTED"
)

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}
