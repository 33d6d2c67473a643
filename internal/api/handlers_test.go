package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poke-platform/internal/config"
	"poke-platform/internal/proposals"
	"poke-platform/internal/storage"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeValuations struct {
	views []storage.ValuationView
	err   error

	direction string
	name      string
	version   string
	limit     int
}

func (f *fakeValuations) TopValuations(_ context.Context, direction, strategyName, strategyVersion string, limit int) ([]storage.ValuationView, error) {
	f.direction = direction
	f.name = strategyName
	f.version = strategyVersion
	f.limit = limit
	return f.views, f.err
}

type fakePrices struct {
	variants storage.VariantHistory
	err      error

	assetID string
	since   time.Time
}

func (f *fakePrices) AssetPriceHistory(_ context.Context, assetID string, since time.Time) (storage.VariantHistory, error) {
	f.assetID = assetID
	f.since = since
	return f.variants, f.err
}

type fakeProposals struct {
	existing  int
	listed    []storage.Proposal
	inserted  []storage.Proposal
	decided   storage.Proposal
	decideErr error

	decision string
	reason   string
}

func (f *fakeProposals) CountProposalsOn(context.Context, time.Time) (int, error) {
	return f.existing, nil
}

func (f *fakeProposals) InsertProposals(_ context.Context, proposals []storage.Proposal) (int, error) {
	f.inserted = append(f.inserted, proposals...)
	return len(proposals), nil
}

func (f *fakeProposals) ListProposalsOn(context.Context, time.Time) ([]storage.Proposal, error) {
	return f.listed, nil
}

func (f *fakeProposals) DecideProposal(_ context.Context, id uuid.UUID, decision, reason string) (storage.Proposal, error) {
	f.decision = decision
	f.reason = reason
	if f.decideErr != nil {
		return storage.Proposal{}, f.decideErr
	}
	f.decided.ProposalID = id
	return f.decided, nil
}

type fakePortfolio struct {
	rows []storage.PortfolioRow
	err  error
}

func (f *fakePortfolio) PortfolioValuations(context.Context, string, string) ([]storage.PortfolioRow, error) {
	return f.rows, f.err
}

type fixture struct {
	db        *fakePinger
	vals      *fakeValuations
	prices    *fakePrices
	props     *fakeProposals
	portfolio *fakePortfolio
	srv       *Server
}

func newFixture() *fixture {
	f := &fixture{
		db:        &fakePinger{},
		vals:      &fakeValuations{},
		prices:    &fakePrices{},
		props:     &fakeProposals{},
		portfolio: &fakePortfolio{},
	}

	cfg := &config.Config{
		Strategy: config.StrategyConfig{Name: "exp_smoothing", Version: "v1"},
		Proposals: config.ProposalsConfig{
			MinGapPct:  0.10,
			MaxBuys:    3,
			MaxSells:   2,
			DefaultQty: 1,
		},
	}

	f.srv = New(Options{
		Config: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			AllowedOrigins: []string{"*"},
		},
		Logger:          zerolog.Nop(),
		DB:              f.db,
		Valuations:      f.vals,
		Prices:          f.prices,
		Proposals:       f.props,
		Portfolio:       f.portfolio,
		Generator:       proposals.NewGenerator(f.vals, f.props, f.portfolio, cfg, zerolog.Nop()),
		Reviewer:        proposals.NewReviewer(f.props, zerolog.Nop()),
		StrategyName:    "exp_smoothing",
		StrategyVersion: "v1",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "api", body["service"])
	assert.Equal(t, true, body["db"])
}

func TestHealthReportsDBDown(t *testing.T) {
	f := newFixture()
	f.db.err = errors.New("connection refused")

	w := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["db"])
}

func TestUndervaluedDefaults(t *testing.T) {
	f := newFixture()
	f.vals.views = []storage.ValuationView{{
		ValDate:         time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		AssetID:         "ptcg:base1-4",
		Name:            "Charizard",
		SetName:         "Base",
		Rarity:          "Rare Holo",
		MarketPrice:     420.55,
		SmoothPrice:     380.10,
		ForecastPrice:   380.10,
		Gap:             -40.45,
		GapPct:          0.35,
		Confidence:      1.0,
		StrategyName:    "exp_smoothing",
		StrategyVersion: "v1",
	}}

	w := f.do(t, http.MethodGet, "/api/valuations/undervalued", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, storage.DirectionUndervalued, f.vals.direction)
	assert.Equal(t, "exp_smoothing", f.vals.name)
	assert.Equal(t, "v1", f.vals.version)
	assert.Equal(t, 10, f.vals.limit)

	body := decodeBody(t, w)
	rows := body["valuations"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "2026-08-25", row["val_date"])
	assert.Equal(t, "ptcg:base1-4", row["asset_id"])
	assert.Equal(t, "Charizard", row["name"])
	assert.InDelta(t, 420.55, row["market_price"].(float64), 1e-9)
	assert.InDelta(t, 0.35, row["gap_pct"].(float64), 1e-9)
}

func TestValuationsQueryOverrides(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/valuations/overvalued?limit=25&strategy_name=baseline_spread&strategy_version=v2", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, storage.DirectionOvervalued, f.vals.direction)
	assert.Equal(t, "baseline_spread", f.vals.name)
	assert.Equal(t, "v2", f.vals.version)
	assert.Equal(t, 25, f.vals.limit)
}

func TestValuationsInvalidLimit(t *testing.T) {
	f := newFixture()

	for _, limit := range []string{"0", "-3", "abc", "9999"} {
		w := f.do(t, http.MethodGet, "/api/valuations/undervalued?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestValuationsStoreError(t *testing.T) {
	f := newFixture()
	f.vals.err = errors.New("relation missing")

	w := f.do(t, http.MethodGet, "/api/valuations/undervalued", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "failed to list valuations")
}

func TestAssetPrices(t *testing.T) {
	f := newFixture()
	f.prices.variants = storage.VariantHistory{
		"normal": {
			{Date: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), AssetID: "ptcg:base1-4", Variant: "normal", Price: 10},
			{Date: time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC), AssetID: "ptcg:base1-4", Variant: "normal", Price: 12},
		},
	}

	w := f.do(t, http.MethodGet, "/api/assets/ptcg:base1-4/prices?days=30", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "ptcg:base1-4", f.prices.assetID)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), f.prices.since, time.Minute)

	body := decodeBody(t, w)
	assert.Equal(t, "ptcg:base1-4", body["asset_id"])
	assert.Equal(t, float64(30), body["days"])

	variants := body["variants"].(map[string]interface{})
	series := variants["normal"].([]interface{})
	require.Len(t, series, 2)
	first := series[0].(map[string]interface{})
	assert.Equal(t, "2026-08-24", first["date"])
	assert.Equal(t, float64(10), first["price"])
}

func TestAssetPricesInvalidDays(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/assets/ptcg:base1-4/prices?days=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalsToday(t *testing.T) {
	f := newFixture()
	f.props.listed = []storage.Proposal{{
		ProposalID:   uuid.New(),
		ProposalDate: time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		Action:       storage.ProposalActionBuy,
		AssetID:      "ptcg:base1-4",
		Qty:          1,
		TargetPrice:  decimal.RequireFromString("15.25"),
		Confidence:   1.0,
		Rationale:    json.RawMessage(`{"strategy":"exp_smoothing:v1"}`),
		Status:       storage.ProposalStatusPending,
	}}

	w := f.do(t, http.MethodGet, "/api/proposals/today", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	rows := body["proposals"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "BUY", row["action"])
	assert.Equal(t, "ptcg:base1-4", row["asset_id"])
	assert.Equal(t, 15.25, row["target_price"])
	assert.Equal(t, "PENDING", row["status"])
	assert.Nil(t, row["decision"])

	rationale := row["rationale"].(map[string]interface{})
	assert.Equal(t, "exp_smoothing:v1", rationale["strategy"])
}

func TestSeedProposals(t *testing.T) {
	f := newFixture()
	f.vals.views = []storage.ValuationView{{
		ValDate:       time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		AssetID:       "ptcg:base1-4",
		MarketPrice:   10,
		ForecastPrice: 15,
		GapPct:        0.5,
		Confidence:    1.0,
	}}

	w := f.do(t, http.MethodPost, "/api/proposals/seed", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["inserted"])
	assert.Equal(t, float64(1), body["buys"])
	assert.Equal(t, false, body["already_seeded"])
	require.Len(t, f.props.inserted, 1)
}

func TestSeedProposalsAlreadySeeded(t *testing.T) {
	f := newFixture()
	f.props.existing = 3

	w := f.do(t, http.MethodPost, "/api/proposals/seed", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["already_seeded"])
	assert.Equal(t, float64(0), body["inserted"])
	assert.Empty(t, f.props.inserted)
}

func TestApproveProposal(t *testing.T) {
	f := newFixture()
	f.props.decided = storage.Proposal{
		Action:  storage.ProposalActionBuy,
		AssetID: "ptcg:base1-4",
		Status:  storage.ProposalStatusDecided,
	}

	id := uuid.New()
	w := f.do(t, http.MethodPost, "/api/proposals/"+id.String()+"/approve", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, storage.ProposalDecisionYes, f.props.decision)

	body := decodeBody(t, w)
	row := body["proposal"].(map[string]interface{})
	assert.Equal(t, id.String(), row["proposal_id"])
	assert.Equal(t, "DECIDED", row["status"])
}

func TestRejectProposalWithReason(t *testing.T) {
	f := newFixture()
	f.props.decided = storage.Proposal{Status: storage.ProposalStatusDecided}

	id := uuid.New()
	w := f.do(t, http.MethodPost, "/api/proposals/"+id.String()+"/reject", `{"reason":"price spiked"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, storage.ProposalDecisionNo, f.props.decision)
	assert.Equal(t, "price spiked", f.props.reason)
}

func TestRejectProposalWithoutBody(t *testing.T) {
	f := newFixture()
	f.props.decided = storage.Proposal{Status: storage.ProposalStatusDecided}

	id := uuid.New()
	w := f.do(t, http.MethodPost, "/api/proposals/"+id.String()+"/reject", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, storage.ProposalDecisionNo, f.props.decision)
	assert.Empty(t, f.props.reason)
}

func TestDecideProposalNotPending(t *testing.T) {
	f := newFixture()
	f.props.decideErr = pgx.ErrNoRows

	w := f.do(t, http.MethodPost, "/api/proposals/"+uuid.NewString()+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDecideProposalInvalidID(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/proposals/not-a-uuid/approve", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortfolioValuations(t *testing.T) {
	f := newFixture()
	f.portfolio.rows = []storage.PortfolioRow{{
		AssetID:       "ptcg:base1-4",
		Name:          "Charizard",
		Qty:           2,
		AvgCost:       decimal.RequireFromString("180.00"),
		ValDate:       time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		MarketPrice:   420.55,
		ForecastPrice: 380.10,
		GapPct:        -0.096,
		Confidence:    1.0,
	}}

	w := f.do(t, http.MethodGet, "/api/portfolio/valuations", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	rows := body["holdings"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "ptcg:base1-4", row["asset_id"])
	assert.Equal(t, float64(2), row["qty"])
	assert.Equal(t, float64(180), row["avg_cost"])
	assert.Equal(t, "2026-08-25", row["val_date"])
}

func TestPortfolioHoldingWithoutValuationHasEmptyValDate(t *testing.T) {
	f := newFixture()
	f.portfolio.rows = []storage.PortfolioRow{{
		AssetID: "ptcg:neo4-9",
		Qty:     1,
		AvgCost: decimal.RequireFromString("12.50"),
	}}

	w := f.do(t, http.MethodGet, "/api/portfolio/valuations", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	rows := body["holdings"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "", row["val_date"])
}
