package etl

import (
	"github.com/marketlens/backend/internal/news"
	"github.com/marketlens/backend/internal/sidra"
	"github.com/marketlens/backend/internal/trends"
)

const (
	SourceStats  = "IBGE-SIDRA"
	SourceTrends = "Google Trends"
	SourceNews   = "Government News"
)

type StatsOutcome struct {
	Concept        string
	Classification string
	Rows           []sidra.Row
	Err            error
}

type TrendsOutcome struct {
	Interest *trends.Interest
	Regions  *trends.RegionInterest
	Related  map[string]*trends.RelatedQueries
	Err      error
}

type NewsOutcome struct {
	Articles []news.Article
	Err      error
}

// Bundle holds one extraction pass. Each worker writes only its own slot.
type Bundle struct {
	Stats  StatsOutcome
	Trends TrendsOutcome
	News   NewsOutcome
}

func (b *Bundle) FailedSources() []string {
	var failed []string
	if b.Stats.Err != nil {
		failed = append(failed, SourceStats)
	}
	if b.Trends.Err != nil {
		failed = append(failed, SourceTrends)
	}
	if b.News.Err != nil {
		failed = append(failed, SourceNews)
	}
	return failed
}
