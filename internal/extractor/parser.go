package extractor

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"poke-platform/internal/storage"
)

const sourceDateLayout = "2006/01/02"

// SourceOutcome tags one provider's extraction result. Missing payloads are
// reported with a reason instead of being silently dropped.
type SourceOutcome struct {
	OK     bool
	Reason string
}

func available() SourceOutcome { return SourceOutcome{OK: true} }

func unavailable(reason string) SourceOutcome { return SourceOutcome{Reason: reason} }

// Extraction is what one card document yields.
type Extraction struct {
	TCG               []storage.TCGPriceSnapshot
	Cardmarket        []storage.CardmarketSnapshot
	TCGOutcome        SourceOutcome
	CardmarketOutcome SourceOutcome
}

type cardPayload struct {
	TCGPlayer  *tcgplayerPayload  `json:"tcgplayer"`
	Cardmarket *cardmarketPayload `json:"cardmarket"`
}

type tcgplayerPayload struct {
	URL       string                     `json:"url"`
	UpdatedAt string                     `json:"updatedAt"`
	Prices    map[string]json.RawMessage `json:"prices"`
}

type tcgVariant struct {
	Low       *float64 `json:"low"`
	Mid       *float64 `json:"mid"`
	High      *float64 `json:"high"`
	Market    *float64 `json:"market"`
	DirectLow *float64 `json:"directLow"`
}

type cardmarketPayload struct {
	Prices json.RawMessage `json:"prices"`
}

type cardmarketPrices struct {
	Avg1             *float64 `json:"avg1"`
	Avg7             *float64 `json:"avg7"`
	Avg30            *float64 `json:"avg30"`
	LowPrice         *float64 `json:"lowPrice"`
	TrendPrice       *float64 `json:"trendPrice"`
	ReverseHoloAvg1  *float64 `json:"reverseHoloAvg1"`
	ReverseHoloAvg7  *float64 `json:"reverseHoloAvg7"`
	ReverseHoloAvg30 *float64 `json:"reverseHoloAvg30"`
	ReverseHoloTrend *float64 `json:"reverseHoloTrend"`
	ReverseHoloSell  *float64 `json:"reverseHoloSell"`
}

// ExtractCard turns one raw card document into per-variant snapshot rows for
// the given snapshot date.
func ExtractCard(assetID string, raw json.RawMessage, snapshotDate, snapshotTS time.Time) Extraction {
	snapshotDate = storage.DateOf(snapshotDate)

	if len(raw) == 0 {
		return Extraction{
			TCGOutcome:        unavailable("no document"),
			CardmarketOutcome: unavailable("no document"),
		}
	}

	var doc cardPayload
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Extraction{
			TCGOutcome:        unavailable("invalid document json"),
			CardmarketOutcome: unavailable("invalid document json"),
		}
	}

	var out Extraction
	out.TCG, out.TCGOutcome = extractTCG(assetID, doc.TCGPlayer, snapshotDate, snapshotTS)
	out.Cardmarket, out.CardmarketOutcome = extractCardmarket(assetID, doc.Cardmarket, snapshotDate, snapshotTS)
	return out
}

func extractTCG(assetID string, payload *tcgplayerPayload, snapshotDate, snapshotTS time.Time) ([]storage.TCGPriceSnapshot, SourceOutcome) {
	if payload == nil {
		return nil, unavailable("no tcgplayer payload")
	}
	if len(payload.Prices) == 0 {
		return nil, unavailable("no tcgplayer prices")
	}

	updatedAt := parseSourceDate(payload.UpdatedAt)

	variants := make([]string, 0, len(payload.Prices))
	for variant := range payload.Prices {
		variants = append(variants, variant)
	}
	sort.Strings(variants)

	rows := make([]storage.TCGPriceSnapshot, 0, len(variants))
	for _, variant := range variants {
		rawVariant := payload.Prices[variant]
		var prices tcgVariant
		if err := json.Unmarshal(rawVariant, &prices); err != nil {
			continue
		}
		rows = append(rows, storage.TCGPriceSnapshot{
			SnapshotDate:    snapshotDate,
			SnapshotTS:      snapshotTS,
			AssetID:         assetID,
			Variant:         variant,
			Currency:        "USD",
			Market:          num(prices.Market),
			Low:             num(prices.Low),
			Mid:             num(prices.Mid),
			High:            num(prices.High),
			DirectLow:       num(prices.DirectLow),
			URL:             payload.URL,
			SourceUpdatedAt: updatedAt,
			Extra:           rawVariant,
		})
	}

	if len(rows) == 0 {
		return nil, unavailable("no usable tcgplayer variants")
	}
	return rows, available()
}

func extractCardmarket(assetID string, payload *cardmarketPayload, snapshotDate, snapshotTS time.Time) ([]storage.CardmarketSnapshot, SourceOutcome) {
	if payload == nil {
		return nil, unavailable("no cardmarket payload")
	}
	if len(payload.Prices) == 0 || string(payload.Prices) == "null" {
		return nil, unavailable("no cardmarket prices")
	}

	var prices cardmarketPrices
	if err := json.Unmarshal(payload.Prices, &prices); err != nil {
		return nil, unavailable("invalid cardmarket prices")
	}

	rows := []storage.CardmarketSnapshot{{
		SnapshotDate: snapshotDate,
		SnapshotTS:   snapshotTS,
		AssetID:      assetID,
		Variant:      "default",
		Currency:     "EUR",
		Avg1:         num(prices.Avg1),
		Avg7:         num(prices.Avg7),
		Avg30:        num(prices.Avg30),
		LowPrice:     num(prices.LowPrice),
		TrendPrice:   num(prices.TrendPrice),
		Extra:        payload.Prices,
	}}

	if reverse, ok := reverseHoloRow(assetID, prices, snapshotDate, snapshotTS); ok {
		rows = append(rows, reverse)
	}
	return rows, available()
}

// reverseHoloRow emits the second Cardmarket row when the payload carries any
// reverse-holo aggregate.
func reverseHoloRow(assetID string, prices cardmarketPrices, snapshotDate, snapshotTS time.Time) (storage.CardmarketSnapshot, bool) {
	present := map[string]*float64{
		"reverseHoloAvg1":  prices.ReverseHoloAvg1,
		"reverseHoloAvg7":  prices.ReverseHoloAvg7,
		"reverseHoloAvg30": prices.ReverseHoloAvg30,
		"reverseHoloTrend": prices.ReverseHoloTrend,
		"reverseHoloSell":  prices.ReverseHoloSell,
	}

	extra := map[string]float64{}
	for key, value := range present {
		if value != nil {
			extra[key] = *value
		}
	}
	if len(extra) == 0 {
		return storage.CardmarketSnapshot{}, false
	}

	extraJSON, _ := json.Marshal(extra)
	return storage.CardmarketSnapshot{
		SnapshotDate: snapshotDate,
		SnapshotTS:   snapshotTS,
		AssetID:      assetID,
		Variant:      "reverseHolo",
		Currency:     "EUR",
		Avg1:         num(prices.ReverseHoloAvg1),
		Avg7:         num(prices.ReverseHoloAvg7),
		Avg30:        num(prices.ReverseHoloAvg30),
		TrendPrice:   num(prices.ReverseHoloTrend),
		Extra:        extraJSON,
	}, true
}

func num(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func parseSourceDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(sourceDateLayout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
