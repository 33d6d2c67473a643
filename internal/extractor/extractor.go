package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"poke-platform/internal/storage"
)

// Extractor derives daily price snapshot rows from the stored raw card
// documents of active tracked assets.
type Extractor struct {
	cards  storage.CardStore
	snaps  storage.SnapshotStore
	logger zerolog.Logger
}

// New constructs the extractor service.
func New(cards storage.CardStore, snaps storage.SnapshotStore, logger zerolog.Logger) *Extractor {
	return &Extractor{
		cards:  cards,
		snaps:  snaps,
		logger: logger.With().Str("component", "extractor").Logger(),
	}
}

// Summary reports what one extraction pass did.
type Summary struct {
	Assets           int
	TCGAssets        int
	CardmarketAssets int
	TCGRows          int
	CardmarketRows   int
	NoSourceAssets   int
}

// Run extracts snapshot rows for snapshotDate from every active asset's
// latest card document and upserts them in two batches.
func (e *Extractor) Run(ctx context.Context, snapshotDate time.Time) (Summary, error) {
	snapshotDate = storage.DateOf(snapshotDate)
	var summary Summary

	docs, err := e.cards.ActiveCardDocs(ctx)
	if err != nil {
		return summary, fmt.Errorf("load active card docs: %w", err)
	}
	summary.Assets = len(docs)

	snapshotTS := time.Now().UTC()
	var tcgRows []storage.TCGPriceSnapshot
	var cmRows []storage.CardmarketSnapshot

	for _, doc := range docs {
		extraction := ExtractCard(doc.AssetID, doc.Raw, snapshotDate, snapshotTS)

		if extraction.TCGOutcome.OK {
			summary.TCGAssets++
			tcgRows = append(tcgRows, extraction.TCG...)
		} else {
			e.logger.Debug().
				Str("asset_id", doc.AssetID).
				Str("reason", extraction.TCGOutcome.Reason).
				Msg("tcgplayer source unavailable")
		}

		if extraction.CardmarketOutcome.OK {
			summary.CardmarketAssets++
			cmRows = append(cmRows, extraction.Cardmarket...)
		} else {
			e.logger.Debug().
				Str("asset_id", doc.AssetID).
				Str("reason", extraction.CardmarketOutcome.Reason).
				Msg("cardmarket source unavailable")
		}

		if !extraction.TCGOutcome.OK && !extraction.CardmarketOutcome.OK {
			summary.NoSourceAssets++
		}
	}

	if summary.TCGRows, err = e.snaps.UpsertTCGSnapshots(ctx, tcgRows); err != nil {
		return summary, fmt.Errorf("upsert tcgplayer snapshots: %w", err)
	}
	if summary.CardmarketRows, err = e.snaps.UpsertCardmarketSnapshots(ctx, cmRows); err != nil {
		return summary, fmt.Errorf("upsert cardmarket snapshots: %w", err)
	}

	e.logger.Info().
		Time("snapshot_date", snapshotDate).
		Int("assets", summary.Assets).
		Int("tcg_assets", summary.TCGAssets).
		Int("cardmarket_assets", summary.CardmarketAssets).
		Int("tcg_rows", summary.TCGRows).
		Int("cardmarket_rows", summary.CardmarketRows).
		Int("no_source_assets", summary.NoSourceAssets).
		Msg("price extraction done")
	return summary, nil
}
