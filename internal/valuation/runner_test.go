package valuation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

type fakeHistory struct {
	history    storage.AssetHistory
	err        error
	lastFilter storage.HistoryFilter
	calls      int
}

func (f *fakeHistory) FetchEligibleHistory(_ context.Context, filter storage.HistoryFilter) (storage.AssetHistory, error) {
	f.calls++
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

type fakeRunStore struct {
	runs      map[string]storage.RunRecord
	records   []storage.ValuationRecord
	existsErr error
	commitErr error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: map[string]storage.RunRecord{}}
}

func runKey(runDate time.Time, name, version string) string {
	return fmt.Sprintf("%s|%s|%s", runDate.Format("2006-01-02"), name, version)
}

func (f *fakeRunStore) RunExists(_ context.Context, runDate time.Time, name, version string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.runs[runKey(runDate, name, version)]
	return ok, nil
}

func (f *fakeRunStore) CommitRun(_ context.Context, records []storage.ValuationRecord, run storage.RunRecord) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	key := runKey(run.RunDate, run.StrategyName, run.StrategyVersion)
	if _, ok := f.runs[key]; ok {
		return storage.ErrRunExists
	}
	f.runs[key] = run
	f.records = append(f.records, records...)
	return nil
}

func testRunnerConfig() config.StrategyConfig {
	return config.StrategyConfig{
		Name:              StrategyExpSmoothing,
		Version:           "v1",
		Alpha:             0.2,
		LookbackDays:      120,
		MinMarketPrice:    1.0,
		VariantPreference: []string{"normal", "reverseHolofoil", "holofoil"},
		RarityFilter:      "%Rare%",
	}
}

func newTestRunner(history *fakeHistory, store *fakeRunStore) *Runner {
	cfg := testRunnerConfig()
	return NewRunner(NewExpSmoothing(cfg), history, store, cfg, zerolog.Nop())
}

func TestRunnerHappyPath(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{history: storage.AssetHistory{
		"ptcg:base1-4": {"normal": variantSeries("normal", runDate.AddDate(0, 0, -4), 10, 10, 10, 10, 20)},
		"ptcg:xy1-1":   {"holofoil": variantSeries("holofoil", runDate.AddDate(0, 0, -2), 30, 31, 32)},
	}}
	store := newFakeRunStore()

	result, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.False(t, result.AlreadyRan)
	assert.Equal(t, 2, result.Inserted)
	assert.NotEqual(t, uuid.Nil, result.RunID)

	require.Len(t, store.records, 2)
	for _, record := range store.records {
		assert.Equal(t, result.RunID, record.RunID)
		assert.Equal(t, StrategyExpSmoothing, record.StrategyName)
		assert.True(t, storage.SameDate(record.ValDate, runDate))
	}

	run, ok := store.runs[runKey(runDate, StrategyExpSmoothing, "v1")]
	require.True(t, ok)
	assert.Equal(t, result.RunID, run.RunID)
	assert.Equal(t, 2, run.InsertedCount)
	assert.Equal(t, "assets_considered=2", run.Note)
}

func TestRunnerPassesFilterFromConfig(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	store := newFakeRunStore()

	_, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.NoError(t, err)

	filter := history.lastFilter
	assert.True(t, storage.SameDate(filter.Start, runDate.AddDate(0, 0, -120)))
	assert.True(t, storage.SameDate(filter.End, runDate))
	assert.Equal(t, 1.0, filter.MinMarketPrice)
	assert.Equal(t, []string{"normal", "reverseHolofoil", "holofoil"}, filter.Variants)
	assert.Equal(t, "%Rare%", filter.RarityFilter)
}

func TestRunnerNormalizesRunDate(t *testing.T) {
	noon := time.Date(2026, 8, 25, 12, 34, 56, 0, time.UTC)
	history := &fakeHistory{}
	store := newFakeRunStore()

	result, err := newTestRunner(history, store).Run(context.Background(), noon)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), result.RunDate)
}

func TestRunnerSecondRunIsNoOp(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{history: storage.AssetHistory{
		"ptcg:base1-4": {"normal": variantSeries("normal", runDate.AddDate(0, 0, -4), 10, 10, 10, 10, 20)},
	}}
	store := newFakeRunStore()
	runner := newTestRunner(history, store)

	first, err := runner.Run(context.Background(), runDate)
	require.NoError(t, err)
	require.Equal(t, 1, first.Inserted)

	second, err := runner.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRan)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, uuid.Nil, second.RunID)

	// The guard fires before any fetch, so the store is untouched.
	assert.Equal(t, 1, history.calls)
	assert.Len(t, store.records, 1)
	assert.Len(t, store.runs, 1)
}

func TestRunnerConcurrentCommitTreatedAsAlreadyRan(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	store := newFakeRunStore()
	store.commitErr = storage.ErrRunExists

	result, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.True(t, result.AlreadyRan)
	assert.Empty(t, store.runs)
}

func TestRunnerRecordsEmptyRun(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{history: storage.AssetHistory{
		// Stale asset: last observation misses the run date.
		"ptcg:base1-4": {"normal": variantSeries("normal", runDate.AddDate(0, 0, -10), 10, 11, 12)},
	}}
	store := newFakeRunStore()

	result, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Empty(t, store.records)

	run, ok := store.runs[runKey(runDate, StrategyExpSmoothing, "v1")]
	require.True(t, ok, "empty runs still write the audit row")
	assert.Equal(t, 0, run.InsertedCount)
}

func TestRunnerFetchErrorAbortsRun(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{err: errors.New("connection refused")}
	store := newFakeRunStore()

	_, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch eligible history")
	assert.Empty(t, store.runs)
	assert.Empty(t, store.records)
}

func TestRunnerGuardErrorAbortsRun(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	store := newFakeRunStore()
	store.existsErr = errors.New("connection refused")

	_, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check run guard")
	assert.Zero(t, history.calls)
}

func TestRunnerCommitErrorPropagates(t *testing.T) {
	runDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	store := newFakeRunStore()
	store.commitErr = errors.New("deadlock detected")

	_, err := newTestRunner(history, store).Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit run")
}
