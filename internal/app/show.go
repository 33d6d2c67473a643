package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"poke-platform/internal/storage"
)

// Show prints recent runs, today's proposals, or portfolio holdings.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	switch opts.Kind {
	case "", "runs":
		return a.showRuns(ctx, store, opts.Limit)
	case "proposals":
		return a.showProposals(ctx, store)
	case "holdings":
		return a.showHoldings(ctx, store)
	default:
		return fmt.Errorf("unknown kind %q (expected runs, proposals, or holdings)", opts.Kind)
	}
}

func (a *App) showRuns(ctx context.Context, store storage.RunReader, limit int) error {
	runs, err := store.ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run Date\tStrategy\tInserted\tStarted (UTC)\tRun ID\tNote")
	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s:%s\t%d\t%s\t%s\t%s\n",
			run.RunDate.UTC().Format("2006-01-02"),
			run.StrategyName,
			run.StrategyVersion,
			run.InsertedCount,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.RunID,
			sanitizeInline(run.Note),
		)
	}
	return writer.Flush()
}

func (a *App) showProposals(ctx context.Context, store storage.ProposalStore) error {
	today := storage.DateOf(time.Now().UTC())
	proposals, err := store.ListProposalsOn(ctx, today)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		fmt.Fprintln(os.Stdout, "no proposals for today")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tAction\tAsset\tQty\tTarget\tConf\tStatus\tDecision")
	for _, p := range proposals {
		decision := "-"
		if p.Decision != nil {
			decision = *p.Decision
			if p.DecisionReason != nil && *p.DecisionReason != "" {
				decision += " (" + sanitizeInline(*p.DecisionReason) + ")"
			}
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%s\t%.2f\t%s\t%s\n",
			p.ProposalID,
			p.Action,
			p.AssetID,
			p.Qty,
			formatDecimal(p.TargetPrice, 2),
			p.Confidence,
			p.Status,
			decision,
		)
	}
	return writer.Flush()
}

func (a *App) showHoldings(ctx context.Context, store storage.PortfolioValuer) error {
	rows, err := store.PortfolioValuations(ctx, a.Config.Strategy.Name, a.Config.Strategy.Version)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no holdings found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tName\tQty\tAvg Cost\tMarket\tForecast\tGap%\tVal Date")
	for _, row := range rows {
		valDate := "-"
		gap := "-"
		if !row.ValDate.IsZero() {
			valDate = row.ValDate.UTC().Format("2006-01-02")
			gap = fmt.Sprintf("%.1f", row.GapPct*100)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%.2f\t%.2f\t%s\t%s\n",
			row.AssetID,
			row.Name,
			row.Qty,
			formatDecimal(row.AvgCost, 2),
			row.MarketPrice,
			row.ForecastPrice,
			gap,
			valDate,
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
