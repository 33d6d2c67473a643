package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"poke-platform/internal/proposals"
	"poke-platform/internal/storage"
)

const (
	defaultValuationLimit = 10
	maxValuationLimit     = 500
	defaultPriceDays      = 120
)

type valuationJSON struct {
	ValDate         string  `json:"val_date"`
	AssetID         string  `json:"asset_id"`
	Name            string  `json:"name"`
	SetName         string  `json:"set_name"`
	Rarity          string  `json:"rarity"`
	Artist          string  `json:"artist"`
	MarketPrice     float64 `json:"market_price"`
	SmoothPrice     float64 `json:"smooth_price"`
	ForecastPrice   float64 `json:"forecast_price"`
	Gap             float64 `json:"gap"`
	GapPct          float64 `json:"gap_pct"`
	Confidence      float64 `json:"confidence"`
	StrategyName    string  `json:"strategy_name"`
	StrategyVersion string  `json:"strategy_version"`
}

type proposalJSON struct {
	ProposalID     string          `json:"proposal_id"`
	ProposalDate   string          `json:"proposal_date"`
	Action         string          `json:"action"`
	AssetID        string          `json:"asset_id"`
	Qty            int             `json:"qty"`
	TargetPrice    float64         `json:"target_price"`
	Confidence     float64         `json:"confidence"`
	Rationale      json.RawMessage `json:"rationale"`
	Status         string          `json:"status"`
	Decision       *string         `json:"decision"`
	DecisionReason *string         `json:"decision_reason"`
}

type holdingJSON struct {
	AssetID       string  `json:"asset_id"`
	Name          string  `json:"name"`
	Qty           int     `json:"qty"`
	AvgCost       float64 `json:"avg_cost"`
	ValDate       string  `json:"val_date"`
	MarketPrice   float64 `json:"market_price"`
	ForecastPrice float64 `json:"forecast_price"`
	GapPct        float64 `json:"gap_pct"`
	Confidence    float64 `json:"confidence"`
}

type pricePointJSON struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health ping failed")
		dbOK = false
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"service": "api",
		"db":      dbOK,
	})
}

func (s *Server) handleUndervalued(w http.ResponseWriter, r *http.Request) {
	s.listValuations(w, r, storage.DirectionUndervalued)
}

func (s *Server) handleOvervalued(w http.ResponseWriter, r *http.Request) {
	s.listValuations(w, r, storage.DirectionOvervalued)
}

func (s *Server) listValuations(w http.ResponseWriter, r *http.Request, direction string) {
	limit := defaultValuationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxValuationLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	strategyName := r.URL.Query().Get("strategy_name")
	if strategyName == "" {
		strategyName = s.strategyName
	}
	strategyVersion := r.URL.Query().Get("strategy_version")
	if strategyVersion == "" {
		strategyVersion = s.strategyVersion
	}

	views, err := s.vals.TopValuations(r.Context(), direction, strategyName, strategyVersion, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("direction", direction).Msg("list valuations failed")
		s.writeError(w, http.StatusInternalServerError, "failed to list valuations")
		return
	}

	out := make([]valuationJSON, 0, len(views))
	for _, v := range views {
		out = append(out, valuationJSON{
			ValDate:         v.ValDate.Format("2006-01-02"),
			AssetID:         v.AssetID,
			Name:            v.Name,
			SetName:         v.SetName,
			Rarity:          v.Rarity,
			Artist:          v.Artist,
			MarketPrice:     v.MarketPrice,
			SmoothPrice:     v.SmoothPrice,
			ForecastPrice:   v.ForecastPrice,
			Gap:             v.Gap,
			GapPct:          v.GapPct,
			Confidence:      v.Confidence,
			StrategyName:    v.StrategyName,
			StrategyVersion: v.StrategyVersion,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"valuations": out})
}

func (s *Server) handleAssetPrices(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if assetID == "" {
		s.writeError(w, http.StatusBadRequest, "asset id is required")
		return
	}

	days := defaultPriceDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	variants, err := s.prices.AssetPriceHistory(r.Context(), assetID, since)
	if err != nil {
		s.logger.Error().Err(err).Str("asset_id", assetID).Msg("asset price history failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}

	out := make(map[string][]pricePointJSON, len(variants))
	for variant, points := range variants {
		series := make([]pricePointJSON, 0, len(points))
		for _, p := range points {
			series = append(series, pricePointJSON{
				Date:  p.Date.Format("2006-01-02"),
				Price: p.Price,
			})
		}
		out[variant] = series
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id": assetID,
		"days":     days,
		"variants": out,
	})
}

func (s *Server) handleProposalsToday(w http.ResponseWriter, r *http.Request) {
	today := storage.DateOf(time.Now().UTC())
	list, err := s.props.ListProposalsOn(r.Context(), today)
	if err != nil {
		s.logger.Error().Err(err).Msg("list proposals failed")
		s.writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}

	out := make([]proposalJSON, 0, len(list))
	for _, p := range list {
		out = append(out, proposalToJSON(p))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": out})
}

func (s *Server) handleSeedProposals(w http.ResponseWriter, r *http.Request) {
	summary, err := s.generator.Seed(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("seed proposals failed")
		s.writeError(w, http.StatusInternalServerError, "failed to seed proposals")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal_date":  summary.Date.Format("2006-01-02"),
		"inserted":       summary.Inserted,
		"buys":           summary.Buys,
		"sells":          summary.Sells,
		"already_seeded": summary.AlreadySeeded,
	})
}

func (s *Server) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.proposalID(w, r)
	if !ok {
		return
	}

	proposal, err := s.reviewer.Approve(r.Context(), id)
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proposal": proposalToJSON(proposal)})
}

func (s *Server) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.proposalID(w, r)
	if !ok {
		return
	}

	// The reject reason is optional and so is the body itself.
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	proposal, err := s.reviewer.Reject(r.Context(), id, body.Reason)
	if err != nil {
		s.writeDecisionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proposal": proposalToJSON(proposal)})
}

func (s *Server) handlePortfolioValuations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.portfolio.PortfolioValuations(r.Context(), s.strategyName, s.strategyVersion)
	if err != nil {
		s.logger.Error().Err(err).Msg("portfolio valuations failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load portfolio valuations")
		return
	}

	out := make([]holdingJSON, 0, len(rows))
	for _, row := range rows {
		h := holdingJSON{
			AssetID:       row.AssetID,
			Name:          row.Name,
			Qty:           row.Qty,
			AvgCost:       row.AvgCost.InexactFloat64(),
			MarketPrice:   row.MarketPrice,
			ForecastPrice: row.ForecastPrice,
			GapPct:        row.GapPct,
			Confidence:    row.Confidence,
		}
		if !row.ValDate.IsZero() {
			h.ValDate = row.ValDate.Format("2006-01-02")
		}
		out = append(out, h)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"holdings": out})
}

func (s *Server) proposalID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "proposalID")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeDecisionError(w http.ResponseWriter, err error) {
	if errors.Is(err, proposals.ErrNotPending) {
		s.writeError(w, http.StatusConflict, "proposal is not pending")
		return
	}
	s.logger.Error().Err(err).Msg("proposal decision failed")
	s.writeError(w, http.StatusInternalServerError, "failed to decide proposal")
}

func proposalToJSON(p storage.Proposal) proposalJSON {
	return proposalJSON{
		ProposalID:     p.ProposalID.String(),
		ProposalDate:   p.ProposalDate.Format("2006-01-02"),
		Action:         p.Action,
		AssetID:        p.AssetID,
		Qty:            p.Qty,
		TargetPrice:    p.TargetPrice.InexactFloat64(),
		Confidence:     p.Confidence,
		Rationale:      p.Rationale,
		Status:         p.Status,
		Decision:       p.Decision,
		DecisionReason: p.DecisionReason,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("encode JSON response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
