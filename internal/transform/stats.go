package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/sidra"
	"github.com/marketlens/backend/pkg/logger"
)

const statsSource = "IBGE-SIDRA"

var classificationNames = map[string]string{
	"200":   "faixa_etaria",
	"143":   "sexo",
	"276":   "instrucao",
	"93":    "cor_raca",
	"11046": "despesas",
}

// Stats groups rows by (classification, category) into market segments, one
// metric per distinct variable. Rows without a numeric value are skipped.
func Stats(classification string, rows []sidra.Row) map[string]*market.Segment {
	segments := map[string]*market.Segment{}

	classLabel, ok := classificationNames[classification]
	if !ok {
		classLabel = fmt.Sprintf("class_%s", classification)
	}

	for _, row := range rows {
		if row.Value == nil {
			logger.Debug("Skipping row without numeric value",
				zap.String("category", row.CategoryCode),
				zap.String("variable", row.VariableCode),
			)
			continue
		}

		catLabel := sidra.NormalizeText(row.Category)
		if catLabel == "" {
			catLabel = fmt.Sprintf("cat_%s", row.CategoryCode)
		}

		key := classLabel + "_" + catLabel
		segment, ok := segments[key]
		if !ok {
			segment = market.NewSegment(key, row.Category)
			segments[key] = segment
		}

		metricName := sidra.NormalizeText(row.Variable)
		if metricName == "" {
			metricName = fmt.Sprintf("var_%s", row.VariableCode)
		}

		point := market.DataPoint{
			Value:      *row.Value,
			Source:     statsSource,
			Timestamp:  time.Now(),
			Confidence: 0.9,
			Quality:    market.QualityHigh,
		}
		if row.Period != "" || row.CategoryCode != "" {
			point.Meta = map[string]interface{}{}
			if row.Period != "" {
				point.Meta["period"] = row.Period
			}
			if row.CategoryCode != "" {
				point.Meta["category_code"] = row.CategoryCode
			}
		}

		if existing, ok := segment.Metrics[metricName]; ok {
			existing.HistoricalValues = append(existing.HistoricalValues, existing.CurrentValue)
			existing.CurrentValue = point
			continue
		}

		segment.AddMetric(&market.Metric{
			Name:         metricName,
			Description:  row.Variable,
			Unit:         row.Unit,
			CurrentValue: point,
		})
	}

	return segments
}

// ExpensesFromRows projects POF expense rows into the fixed category→value map
// the scorer consumes. Only rows with known expense category codes contribute.
func ExpensesFromRows(rows []sidra.Row) map[string]float64 {
	expenses := map[string]float64{}
	for _, row := range rows {
		if row.Value == nil || row.CategoryCode == "" {
			continue
		}
		expenses[row.CategoryCode] = *row.Value
	}
	return expenses
}
