package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"poke-platform/internal/storage"
)

// Feed lists sets and cards from the upstream card universe.
type Feed interface {
	ListSets(ctx context.Context) ([]Set, error)
	ListSetCards(ctx context.Context, setID string) ([]Card, error)
}

// Syncer refreshes the card metadata universe for one snapshot date.
type Syncer struct {
	feed        Feed
	cards       storage.CardStore
	cutoffYears int
	logger      zerolog.Logger
}

// NewSyncer constructs the universe sync service. cutoffYears limits the
// universe to sets released within that window; zero disables the cutoff.
func NewSyncer(feed Feed, cards storage.CardStore, cutoffYears int, logger zerolog.Logger) *Syncer {
	return &Syncer{
		feed:        feed,
		cards:       cards,
		cutoffYears: cutoffYears,
		logger:      logger.With().Str("component", "universe").Logger(),
	}
}

// Summary reports what one sync pass did.
type Summary struct {
	SetsSeen      int
	SetsSelected  int
	SetsFailed    int
	CardsUpserted int
}

// Sync lists all sets, filters them by the release cutoff, and upserts one
// metadata snapshot row per card. A failing set is logged and skipped so the
// rest of the universe still lands.
func (s *Syncer) Sync(ctx context.Context, snapshotDate time.Time) (Summary, error) {
	snapshotDate = storage.DateOf(snapshotDate)
	var summary Summary

	sets, err := s.feed.ListSets(ctx)
	if err != nil {
		return summary, fmt.Errorf("list sets: %w", err)
	}
	summary.SetsSeen = len(sets)

	var cutoff time.Time
	if s.cutoffYears > 0 {
		cutoff = snapshotDate.AddDate(-s.cutoffYears, 0, 0)
	}

	for _, set := range sets {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		release := parseReleaseDate(set.ReleaseDate)
		if !cutoff.IsZero() && release != nil && release.Before(cutoff) {
			continue
		}
		summary.SetsSelected++

		count, err := s.syncSet(ctx, set, release, snapshotDate)
		if err != nil {
			summary.SetsFailed++
			s.logger.Error().Err(err).
				Str("set_id", set.ID).
				Str("set_name", set.Name).
				Msg("set sync failed")
			continue
		}
		summary.CardsUpserted += count

		s.logger.Debug().
			Str("set_id", set.ID).
			Int("cards", count).
			Msg("set synced")
	}

	s.logger.Info().
		Time("snapshot_date", snapshotDate).
		Int("sets_seen", summary.SetsSeen).
		Int("sets_selected", summary.SetsSelected).
		Int("sets_failed", summary.SetsFailed).
		Int("cards_upserted", summary.CardsUpserted).
		Msg("universe sync done")
	return summary, nil
}

func (s *Syncer) syncSet(ctx context.Context, set Set, release *time.Time, snapshotDate time.Time) (int, error) {
	cards, err := s.feed.ListSetCards(ctx, set.ID)
	if err != nil {
		return 0, err
	}

	metas := make([]storage.CardMetadata, 0, len(cards))
	for _, card := range cards {
		if card.ID == "" {
			continue
		}
		setID := card.SetID
		if setID == "" {
			setID = set.ID
		}
		setName := card.SetName
		if setName == "" {
			setName = set.Name
		}
		metas = append(metas, storage.CardMetadata{
			AssetID:        AssetID(card.ID),
			SnapshotDate:   snapshotDate,
			PTCGCardID:     card.ID,
			Name:           card.Name,
			SetID:          setID,
			SetName:        setName,
			SetReleaseDate: release,
			Number:         card.Number,
			Rarity:         card.Rarity,
			Artist:         card.Artist,
			ImagesJSON:     card.Images,
			RawJSON:        card.Raw,
		})
	}

	if len(metas) == 0 {
		return 0, nil
	}
	return s.cards.UpsertCards(ctx, metas)
}

// AssetID maps an upstream card id to the platform asset id.
func AssetID(cardID string) string {
	return "ptcg:" + cardID
}
