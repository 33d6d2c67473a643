package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertProposalSQL = `INSERT INTO trade_proposal (
        proposal_id,
        proposal_date,
        action,
        asset_id,
        qty,
        target_price,
        confidence,
        rationale_json,
        status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	countProposalsOnSQL = `SELECT COUNT(*) FROM trade_proposal WHERE proposal_date = $1;`

	listProposalsOnSQL = `SELECT
        proposal_id,
        proposal_date,
        ts_created,
        action,
        asset_id,
        qty,
        target_price,
        confidence,
        rationale_json,
        status,
        decision,
        decision_reason,
        decided_ts
    FROM trade_proposal
    WHERE proposal_date = $1
    ORDER BY ts_created, proposal_id;`

	decideProposalSQL = `UPDATE trade_proposal
    SET status          = $2,
        decision        = $3,
        decision_reason = $4,
        decided_ts      = now()
    WHERE proposal_id = $1
      AND status = 'PENDING'
    RETURNING
        proposal_id,
        proposal_date,
        ts_created,
        action,
        asset_id,
        qty,
        target_price,
        confidence,
        rationale_json,
        status,
        decision,
        decision_reason,
        decided_ts;`
)

// ProposalStore persists trade proposals and review decisions.
type ProposalStore interface {
	CountProposalsOn(ctx context.Context, date time.Time) (int, error)
	InsertProposals(ctx context.Context, proposals []Proposal) (int, error)
	ListProposalsOn(ctx context.Context, date time.Time) ([]Proposal, error)
	DecideProposal(ctx context.Context, id uuid.UUID, decision, reason string) (Proposal, error)
}

// CountProposalsOn counts proposals seeded for a date.
func (s *Store) CountProposalsOn(ctx context.Context, date time.Time) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int
	if scanErr := pool.QueryRow(ctx, countProposalsOnSQL, DateOf(date)).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count proposals: %w", scanErr)
	}
	return count, nil
}

// InsertProposals writes new pending proposals in one batch.
func (s *Store) InsertProposals(ctx context.Context, proposals []Proposal) (int, error) {
	if len(proposals) == 0 {
		return 0, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, p := range proposals {
		batch.Queue(insertProposalSQL,
			p.ProposalID,
			DateOf(p.ProposalDate),
			p.Action,
			p.AssetID,
			p.Qty,
			p.TargetPrice.String(),
			p.Confidence,
			p.Rationale,
			p.Status,
		)
	}

	results := pool.SendBatch(ctx, batch)
	for range proposals {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("insert proposal: %w", execErr)
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		return 0, fmt.Errorf("close proposal batch: %w", closeErr)
	}
	return len(proposals), nil
}

// ListProposalsOn lists all proposals seeded for a date.
func (s *Store) ListProposalsOn(ctx context.Context, date time.Time) ([]Proposal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listProposalsOnSQL, DateOf(date))
	if queryErr != nil {
		return nil, fmt.Errorf("list proposals: %w", queryErr)
	}
	defer rows.Close()

	proposals := make([]Proposal, 0)
	for rows.Next() {
		proposal, scanErr := scanProposal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		proposals = append(proposals, proposal)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return proposals, nil
}

// DecideProposal records an approve/reject decision on a pending proposal.
// Returns pgx.ErrNoRows when the proposal is missing or already decided.
func (s *Store) DecideProposal(ctx context.Context, id uuid.UUID, decision, reason string) (Proposal, error) {
	pool, err := s.getPool()
	if err != nil {
		return Proposal{}, err
	}

	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}

	rows, queryErr := pool.Query(ctx, decideProposalSQL, id, ProposalStatusDecided, decision, reasonArg)
	if queryErr != nil {
		return Proposal{}, fmt.Errorf("decide proposal: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Proposal{}, rows.Err()
		}
		return Proposal{}, pgx.ErrNoRows
	}

	proposal, scanErr := scanProposal(rows)
	if scanErr != nil {
		return Proposal{}, scanErr
	}
	return proposal, rows.Err()
}

func scanProposal(rows pgx.Rows) (Proposal, error) {
	var (
		proposal  Proposal
		targetStr sql.NullString
		decision  sql.NullString
		reason    sql.NullString
		decidedTS sql.NullTime
	)

	if err := rows.Scan(
		&proposal.ProposalID,
		&proposal.ProposalDate,
		&proposal.TSCreated,
		&proposal.Action,
		&proposal.AssetID,
		&proposal.Qty,
		&targetStr,
		&proposal.Confidence,
		&proposal.Rationale,
		&proposal.Status,
		&decision,
		&reason,
		&decidedTS,
	); err != nil {
		return Proposal{}, fmt.Errorf("scan proposal: %w", err)
	}

	if targetStr.Valid {
		target, convErr := decimal.NewFromString(targetStr.String)
		if convErr != nil {
			return Proposal{}, fmt.Errorf("parse target price: %w", convErr)
		}
		proposal.TargetPrice = target
	}
	proposal.ProposalDate = DateOf(proposal.ProposalDate)

	if decision.Valid {
		value := decision.String
		proposal.Decision = &value
	}
	if reason.Valid {
		value := reason.String
		proposal.DecisionReason = &value
	}
	if decidedTS.Valid {
		value := decidedTS.Time
		proposal.DecidedTS = &value
	}

	return proposal, nil
}

var _ ProposalStore = (*Store)(nil)
