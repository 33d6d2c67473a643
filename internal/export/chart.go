package export

import (
	"errors"
	"math"
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"poke-platform/internal/storage"
)

// ChartInput holds one variant series and its running smoothed level.
// Smoothed must align index-for-index with Points.
type ChartInput struct {
	AssetID  string
	Variant  string
	Points   []storage.PricePoint
	Smoothed []float64
}

// RenderPriceChart draws the raw market series next to the smoothed level and
// writes the PNG to path.
func RenderPriceChart(path string, input ChartInput, maxPoints int) error {
	if len(input.Points) == 0 {
		return errors.New("no price points to chart")
	}
	if len(input.Smoothed) != len(input.Points) {
		return errors.New("smoothed series length mismatch")
	}

	points, smoothed := downsamplePoints(input.Points, input.Smoothed, maxPoints)

	x := make([]time.Time, len(points))
	raw := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Date
		raw[i] = p.Price
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  input.AssetID + " (" + input.Variant + ")",
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Market",
				XValues: x,
				YValues: raw,
			},
			chart.TimeSeries{
				Name:    "Smoothed",
				XValues: x,
				YValues: smoothed,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func downsamplePoints(points []storage.PricePoint, smoothed []float64, max int) ([]storage.PricePoint, []float64) {
	if max <= 0 || len(points) <= max {
		return points, smoothed
	}

	outPoints := make([]storage.PricePoint, 0, max)
	outSmoothed := make([]float64, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		outPoints = append(outPoints, points[idx])
		outSmoothed = append(outSmoothed, smoothed[idx])
	}
	return outPoints, outSmoothed
}
