package proposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"poke-platform/internal/storage"
)

// ErrNotPending marks a decision against a proposal that does not exist or
// was already decided.
var ErrNotPending = errors.New("proposal is not pending")

// Reviewer records human approve/reject decisions on pending proposals.
type Reviewer struct {
	props  storage.ProposalStore
	logger zerolog.Logger
}

// NewReviewer constructs a Reviewer over the proposal store.
func NewReviewer(props storage.ProposalStore, logger zerolog.Logger) *Reviewer {
	return &Reviewer{
		props:  props,
		logger: logger.With().Str("component", "proposals").Logger(),
	}
}

// Approve marks a pending proposal as approved.
func (r *Reviewer) Approve(ctx context.Context, id uuid.UUID) (storage.Proposal, error) {
	return r.decide(ctx, id, storage.ProposalDecisionYes, "")
}

// Reject marks a pending proposal as rejected. The reason is optional.
func (r *Reviewer) Reject(ctx context.Context, id uuid.UUID, reason string) (storage.Proposal, error) {
	return r.decide(ctx, id, storage.ProposalDecisionNo, reason)
}

func (r *Reviewer) decide(ctx context.Context, id uuid.UUID, decision, reason string) (storage.Proposal, error) {
	proposal, err := r.props.DecideProposal(ctx, id, decision, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Proposal{}, ErrNotPending
		}
		return storage.Proposal{}, fmt.Errorf("decide proposal: %w", err)
	}

	r.logger.Info().
		Str("proposal_id", id.String()).
		Str("decision", decision).
		Str("action", proposal.Action).
		Str("asset_id", proposal.AssetID).
		Msg("proposal decided")
	return proposal, nil
}
