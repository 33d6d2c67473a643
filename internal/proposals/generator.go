package proposals

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// Generator seeds the day's trade proposals from fresh valuations: buys from
// the top undervalued gaps, sells from overvalued holdings. Seeding is
// idempotent per proposal date.
type Generator struct {
	vals      storage.ValuationReader
	props     storage.ProposalStore
	portfolio storage.PortfolioValuer
	logger    zerolog.Logger

	strategyName    string
	strategyVersion string
	minGapPct       float64
	maxBuys         int
	maxSells        int
	defaultQty      int
}

// NewGenerator constructs the proposal generator.
func NewGenerator(vals storage.ValuationReader, props storage.ProposalStore, portfolio storage.PortfolioValuer, cfg *config.Config, logger zerolog.Logger) *Generator {
	strategyName := cfg.Proposals.StrategyName
	if strategyName == "" {
		strategyName = cfg.Strategy.Name
	}

	return &Generator{
		vals:            vals,
		props:           props,
		portfolio:       portfolio,
		logger:          logger.With().Str("component", "proposals").Logger(),
		strategyName:    strategyName,
		strategyVersion: cfg.Strategy.Version,
		minGapPct:       cfg.Proposals.MinGapPct,
		maxBuys:         cfg.Proposals.MaxBuys,
		maxSells:        cfg.Proposals.MaxSells,
		defaultQty:      cfg.Proposals.DefaultQty,
	}
}

// Summary reports what one seeding pass did.
type Summary struct {
	Date          time.Time
	Inserted      int
	Buys          int
	Sells         int
	AlreadySeeded bool
}

type rationale struct {
	Strategy      string  `json:"strategy"`
	ValDate       string  `json:"val_date"`
	MarketPrice   float64 `json:"market_price"`
	ForecastPrice float64 `json:"forecast_price"`
	GapPct        float64 `json:"gap_pct"`
}

// Seed inserts pending proposals for day. A day that already has proposals is
// left untouched and reported via AlreadySeeded.
func (g *Generator) Seed(ctx context.Context, day time.Time) (Summary, error) {
	day = storage.DateOf(day)
	summary := Summary{Date: day}

	existing, err := g.props.CountProposalsOn(ctx, day)
	if err != nil {
		return summary, fmt.Errorf("count existing proposals: %w", err)
	}
	if existing > 0 {
		g.logger.Info().
			Time("proposal_date", day).
			Int("existing", existing).
			Msg("proposals already seeded, skipping")
		summary.AlreadySeeded = true
		return summary, nil
	}

	buys, err := g.buyCandidates(ctx, day)
	if err != nil {
		return summary, err
	}
	sells, err := g.sellCandidates(ctx, day)
	if err != nil {
		return summary, err
	}

	proposals := append(buys, sells...)
	inserted, err := g.props.InsertProposals(ctx, proposals)
	if err != nil {
		return summary, fmt.Errorf("insert proposals: %w", err)
	}

	summary.Inserted = inserted
	summary.Buys = len(buys)
	summary.Sells = len(sells)

	g.logger.Info().
		Time("proposal_date", day).
		Int("buys", summary.Buys).
		Int("sells", summary.Sells).
		Str("strategy", g.strategyName).
		Msg("proposals seeded")
	return summary, nil
}

func (g *Generator) buyCandidates(ctx context.Context, day time.Time) ([]storage.Proposal, error) {
	if g.maxBuys <= 0 {
		return nil, nil
	}

	views, err := g.vals.TopValuations(ctx, storage.DirectionUndervalued, g.strategyName, g.strategyVersion, g.maxBuys)
	if err != nil {
		return nil, fmt.Errorf("load undervalued valuations: %w", err)
	}

	proposals := make([]storage.Proposal, 0, len(views))
	for _, view := range views {
		// Views arrive ordered by gap_pct descending.
		if view.GapPct < g.minGapPct {
			break
		}
		proposals = append(proposals, g.newProposal(day, storage.ProposalActionBuy, view.AssetID, g.defaultQty, view.ForecastPrice, view.Confidence, rationale{
			Strategy:      g.strategyID(),
			ValDate:       view.ValDate.Format("2006-01-02"),
			MarketPrice:   view.MarketPrice,
			ForecastPrice: view.ForecastPrice,
			GapPct:        view.GapPct,
		}))
	}
	return proposals, nil
}

func (g *Generator) sellCandidates(ctx context.Context, day time.Time) ([]storage.Proposal, error) {
	if g.maxSells <= 0 {
		return nil, nil
	}

	rows, err := g.portfolio.PortfolioValuations(ctx, g.strategyName, g.strategyVersion)
	if err != nil {
		return nil, fmt.Errorf("load portfolio valuations: %w", err)
	}

	candidates := make([]storage.PortfolioRow, 0, len(rows))
	for _, row := range rows {
		if row.ValDate.IsZero() || row.Qty <= 0 {
			continue
		}
		if row.GapPct <= -g.minGapPct {
			candidates = append(candidates, row)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].GapPct < candidates[j].GapPct })
	if len(candidates) > g.maxSells {
		candidates = candidates[:g.maxSells]
	}

	proposals := make([]storage.Proposal, 0, len(candidates))
	for _, row := range candidates {
		qty := g.defaultQty
		if row.Qty < qty {
			qty = row.Qty
		}
		proposals = append(proposals, g.newProposal(day, storage.ProposalActionSell, row.AssetID, qty, row.ForecastPrice, row.Confidence, rationale{
			Strategy:      g.strategyID(),
			ValDate:       row.ValDate.Format("2006-01-02"),
			MarketPrice:   row.MarketPrice,
			ForecastPrice: row.ForecastPrice,
			GapPct:        row.GapPct,
		}))
	}
	return proposals, nil
}

func (g *Generator) newProposal(day time.Time, action, assetID string, qty int, target, confidence float64, why rationale) storage.Proposal {
	rationaleJSON, _ := json.Marshal(why)
	return storage.Proposal{
		ProposalID:   uuid.New(),
		ProposalDate: day,
		Action:       action,
		AssetID:      assetID,
		Qty:          qty,
		TargetPrice:  decimal.NewFromFloat(target).Round(2),
		Confidence:   confidence,
		Rationale:    rationaleJSON,
		Status:       storage.ProposalStatusPending,
	}
}

func (g *Generator) strategyID() string {
	return g.strategyName + ":" + g.strategyVersion
}
