package transform

import (
	"time"

	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/trends"
)

const trendsSource = "Google Trends"

// Trends reduces an interest-over-time response to per-keyword summaries.
// Error-marker responses yield an empty map rather than failing the pipeline.
func Trends(interest *trends.Interest) map[string]*market.SearchTrend {
	out := map[string]*market.SearchTrend{}
	if interest == nil || interest.Status != trends.StatusOK {
		return out
	}

	for keyword, points := range interest.Series {
		if len(points) == 0 {
			continue
		}

		sum := 0.0
		dataPoints := make([]market.DataPoint, 0, len(points))
		for _, p := range points {
			sum += p.Value
			ts, err := time.Parse("2006-01-02", p.Date)
			if err != nil {
				ts = time.Now()
			}
			dataPoints = append(dataPoints, market.DataPoint{
				Value:      p.Value,
				Source:     trendsSource,
				Timestamp:  ts,
				Confidence: 0.8,
				Quality:    market.QualityMedium,
			})
		}
		mean := sum / float64(len(points))
		latest := points[len(points)-1].Value

		trendPercent := 0.0
		if mean != 0 {
			trendPercent = (latest - mean) / mean * 100
		}

		out[keyword] = &market.SearchTrend{
			Keyword:      keyword,
			LatestValue:  latest,
			MeanValue:    mean,
			TrendPercent: trendPercent,
			Points:       dataPoints,
		}
	}

	return out
}
