package extractor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullCardDoc = `{
  "id": "base1-4",
  "name": "Charizard",
  "tcgplayer": {
    "url": "https://prices.pokemontcg.io/tcgplayer/base1-4",
    "updatedAt": "2026/08/25",
    "prices": {
      "holofoil": {"low": 300.0, "mid": 399.99, "high": 1200.0, "market": 420.55, "directLow": null},
      "1stEditionHolofoil": {"low": 1500.0, "market": 2500.0}
    }
  },
  "cardmarket": {
    "url": "https://prices.pokemontcg.io/cardmarket/base1-4",
    "updatedAt": "2026/08/25",
    "prices": {
      "averageSellPrice": 350.0,
      "lowPrice": 280.0,
      "trendPrice": 360.25,
      "avg1": 355.0,
      "avg7": 348.5,
      "avg30": 340.0,
      "reverseHoloAvg1": 120.0,
      "reverseHoloAvg7": 118.0,
      "reverseHoloAvg30": 110.5,
      "reverseHoloTrend": 119.25
    }
  }
}`

func extractFixture(t *testing.T, doc string) Extraction {
	t.Helper()
	snapshotDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	snapshotTS := time.Date(2026, 8, 25, 6, 30, 0, 0, time.UTC)
	return ExtractCard("ptcg:base1-4", []byte(doc), snapshotDate, snapshotTS)
}

func decimalEq(t *testing.T, want float64, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.NewFromFloat(want)), "want %v, got %s", want, got)
}

func TestExtractCardFullDocument(t *testing.T) {
	out := extractFixture(t, fullCardDoc)
	assert.True(t, out.TCGOutcome.OK)
	assert.True(t, out.CardmarketOutcome.OK)

	require.Len(t, out.TCG, 2)
	// Variants come out in sorted order.
	first, holo := out.TCG[0], out.TCG[1]
	assert.Equal(t, "1stEditionHolofoil", first.Variant)
	assert.Equal(t, "holofoil", holo.Variant)

	assert.Equal(t, "ptcg:base1-4", holo.AssetID)
	assert.Equal(t, "USD", holo.Currency)
	decimalEq(t, 420.55, holo.Market)
	decimalEq(t, 300.0, holo.Low)
	decimalEq(t, 399.99, holo.Mid)
	decimalEq(t, 1200.0, holo.High)
	assert.Nil(t, holo.DirectLow, "null directLow stays NULL")
	assert.Equal(t, "https://prices.pokemontcg.io/tcgplayer/base1-4", holo.URL)
	require.NotNil(t, holo.SourceUpdatedAt)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), *holo.SourceUpdatedAt)
	assert.JSONEq(t, `{"low": 300.0, "mid": 399.99, "high": 1200.0, "market": 420.55, "directLow": null}`, string(holo.Extra))

	assert.Nil(t, first.Mid)
	decimalEq(t, 2500.0, first.Market)

	require.Len(t, out.Cardmarket, 2)
	def, reverse := out.Cardmarket[0], out.Cardmarket[1]
	assert.Equal(t, "default", def.Variant)
	assert.Equal(t, "EUR", def.Currency)
	decimalEq(t, 355.0, def.Avg1)
	decimalEq(t, 348.5, def.Avg7)
	decimalEq(t, 340.0, def.Avg30)
	decimalEq(t, 280.0, def.LowPrice)
	decimalEq(t, 360.25, def.TrendPrice)

	assert.Equal(t, "reverseHolo", reverse.Variant)
	decimalEq(t, 120.0, reverse.Avg1)
	decimalEq(t, 118.0, reverse.Avg7)
	decimalEq(t, 110.5, reverse.Avg30)
	decimalEq(t, 119.25, reverse.TrendPrice)
	assert.Nil(t, reverse.LowPrice, "reverse row has no low price")
	assert.JSONEq(t, `{"reverseHoloAvg1":120,"reverseHoloAvg7":118,"reverseHoloAvg30":110.5,"reverseHoloTrend":119.25}`, string(reverse.Extra))
}

func TestExtractCardTCGOnly(t *testing.T) {
	doc := `{"tcgplayer": {"url": "u", "updatedAt": "2026/08/25", "prices": {"normal": {"market": 1.25}}}}`
	out := extractFixture(t, doc)

	assert.True(t, out.TCGOutcome.OK)
	require.Len(t, out.TCG, 1)
	decimalEq(t, 1.25, out.TCG[0].Market)

	assert.False(t, out.CardmarketOutcome.OK)
	assert.Equal(t, "no cardmarket payload", out.CardmarketOutcome.Reason)
	assert.Empty(t, out.Cardmarket)
}

func TestExtractCardEmptyPrices(t *testing.T) {
	doc := `{"tcgplayer": {"url": "u", "prices": {}}, "cardmarket": {"prices": null}}`
	out := extractFixture(t, doc)

	assert.False(t, out.TCGOutcome.OK)
	assert.Equal(t, "no tcgplayer prices", out.TCGOutcome.Reason)
	assert.False(t, out.CardmarketOutcome.OK)
	assert.Equal(t, "no cardmarket prices", out.CardmarketOutcome.Reason)
}

func TestExtractCardNoReverseHolo(t *testing.T) {
	doc := `{"cardmarket": {"prices": {"avg1": 10.0, "avg7": 11.0, "avg30": 12.0, "lowPrice": 9.0, "trendPrice": 10.5}}}`
	out := extractFixture(t, doc)

	require.True(t, out.CardmarketOutcome.OK)
	require.Len(t, out.Cardmarket, 1)
	assert.Equal(t, "default", out.Cardmarket[0].Variant)
}

func TestExtractCardSkipsMalformedVariant(t *testing.T) {
	doc := `{"tcgplayer": {"prices": {"normal": {"market": 2.5}, "weird": "not an object"}}}`
	out := extractFixture(t, doc)

	require.True(t, out.TCGOutcome.OK)
	require.Len(t, out.TCG, 1)
	assert.Equal(t, "normal", out.TCG[0].Variant)
}

func TestExtractCardInvalidDocument(t *testing.T) {
	out := extractFixture(t, `{not json`)
	assert.False(t, out.TCGOutcome.OK)
	assert.Equal(t, "invalid document json", out.TCGOutcome.Reason)
	assert.False(t, out.CardmarketOutcome.OK)
}

func TestExtractCardEmptyDocument(t *testing.T) {
	snapshotDate := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	out := ExtractCard("ptcg:base1-4", nil, snapshotDate, snapshotDate)
	assert.False(t, out.TCGOutcome.OK)
	assert.Equal(t, "no document", out.TCGOutcome.Reason)
	assert.False(t, out.CardmarketOutcome.OK)
}

func TestExtractCardUnparseableUpdatedAt(t *testing.T) {
	doc := `{"tcgplayer": {"updatedAt": "yesterday", "prices": {"normal": {"market": 2.5}}}}`
	out := extractFixture(t, doc)
	require.Len(t, out.TCG, 1)
	assert.Nil(t, out.TCG[0].SourceUpdatedAt)
}
