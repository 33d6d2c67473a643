package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"poke-platform/internal/alerting"
	"poke-platform/internal/storage"
	"poke-platform/internal/valuation"
)

// Simulate runs the configured strategy over a CSV price series without
// touching the database. Rows carry date,price; a header row is tolerated.
// With Notify set, the result is also pushed through the alert channel so
// operators can verify wiring end to end.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.CSVPath == "" {
		return errors.New("csv path is required")
	}

	assetID := opts.AssetID
	if assetID == "" {
		assetID = "sim:asset"
	}
	variant := a.Config.Strategy.VariantPreference[0]

	series, err := readPriceCSV(opts.CSVPath, assetID, variant)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return errors.New("csv holds no price rows")
	}

	strategy, err := valuation.NewStrategy(a.Config.Strategy)
	if err != nil {
		return err
	}

	runDate := storage.DateOf(series[len(series)-1].Date)
	history := storage.AssetHistory{assetID: storage.VariantHistory{variant: series}}
	records := strategy.ComputeCandidates(history, runDate, uuid.New())
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no valuation produced (series empty or below the price floor)")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tVal Date\tMarket\tSmooth\tForecast\tGap\tGap%\tConf")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.2f\t%.4f\t%.4f\t%.4f\t%.1f\t%.2f\n",
			rec.AssetID,
			rec.ValDate.Format("2006-01-02"),
			rec.MarketPrice,
			rec.SmoothPrice,
			rec.ForecastPrice,
			rec.Gap,
			rec.GapPct*100,
			rec.Confidence,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if !opts.Notify {
		return nil
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	note := alerting.Notification{
		RunDate:         runDate,
		StrategyName:    a.Config.Strategy.Name,
		StrategyVersion: a.Config.Strategy.Version,
		Inserted:        len(records),
		AdditionalMsg:   "Simulated run, nothing persisted.",
	}
	for _, rec := range records {
		note.TopUndervalued = append(note.TopUndervalued, alerting.GapLine{
			AssetID: rec.AssetID,
			GapPct:  rec.GapPct,
		})
	}
	return notifier.Notify(ctx, note)
}

// readPriceCSV loads date,price rows into a date-ordered series.
func readPriceCSV(path, assetID, variant string) ([]storage.PricePoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	points := make([]storage.PricePoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected date,price", i+1)
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("row %d: invalid date %q", i+1, row[0])
		}

		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid price %q", i+1, row[1])
		}

		points = append(points, storage.PricePoint{
			Date:    storage.DateOf(date),
			AssetID: assetID,
			Variant: variant,
			Price:   price,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
