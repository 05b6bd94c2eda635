package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stockwatch-telegram-bot/internal/types"
)

// RenderCheckHistory draws tracked product counts and alerts per cycle
// as a PNG for the periodic summary message.
func RenderCheckHistory(category string, records []types.CheckRecord) ([]byte, error) {
	if len(records) < 2 {
		return nil, errors.New("not enough check history to render a chart")
	}

	times := make([]time.Time, 0, len(records))
	products := make([]float64, 0, len(records))
	alerts := make([]float64, 0, len(records))
	for _, rec := range records {
		times = append(times, rec.CheckedAt)
		products = append(products, float64(rec.Products))
		alerts = append(alerts, float64(rec.AlertsSent))
	}

	blue := drawing.Color{R: 0, G: 122, B: 255, A: 255}
	orange := drawing.Color{R: 255, G: 149, B: 0, A: 255}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s: tracked products per check", category),
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02-Jan 15:04"),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "products",
				XValues: times,
				YValues: products,
				Style: chart.Style{
					StrokeColor: blue,
					FillColor:   blue.WithAlpha(35),
				},
			},
			chart.TimeSeries{
				Name:    "alerts",
				XValues: times,
				YValues: alerts,
				Style: chart.Style{
					StrokeColor: orange,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "could not render check history chart")
	}

	return buf.Bytes(), nil
}
