package market

import "time"

const (
	QualityHigh    = "high"
	QualityMedium  = "medium"
	QualityLow     = "low"
	QualityUnknown = "unknown"
)

type DataPoint struct {
	Value      float64                `json:"value"`
	Source     string                 `json:"source"`
	Timestamp  time.Time              `json:"timestamp"`
	Confidence float64                `json:"confidence"`
	Quality    string                 `json:"quality"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

type Metric struct {
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Unit             string      `json:"unit,omitempty"`
	CurrentValue     DataPoint   `json:"current_value"`
	HistoricalValues []DataPoint `json:"historical_values,omitempty"`
	Trend            *float64    `json:"trend,omitempty"`
}

type Segment struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Metrics     map[string]*Metric `json:"metrics"`

	// Enrichment fields appended by the scoring pass.
	Archetype                 string   `json:"archetype,omitempty"`
	SentimentIndex            *float64 `json:"sentiment_index,omitempty"`
	BehavioralCharacteristics []string `json:"behavioral_characteristics,omitempty"`
	SpendingPriority          string   `json:"spending_priority,omitempty"`
}

func NewSegment(name, description string) *Segment {
	return &Segment{
		Name:        name,
		Description: description,
		Metrics:     map[string]*Metric{},
	}
}

func (s *Segment) AddMetric(m *Metric) {
	s.Metrics[m.Name] = m
}

type SearchTrend struct {
	Keyword      string      `json:"keyword"`
	LatestValue  float64     `json:"latest_value"`
	MeanValue    float64     `json:"mean_value"`
	TrendPercent float64     `json:"trend_percent"`
	Points       []DataPoint `json:"points,omitempty"`
}

type NewsAnalysis struct {
	Volume       int                `json:"volume"`
	AvgSentiment float64            `json:"avg_sentiment"`
	TopSources   []string           `json:"top_sources,omitempty"`
	TopKeywords  map[string]int     `json:"top_keywords,omitempty"`
	TopEntities  map[string]int     `json:"top_entities,omitempty"`
	Topics       [][]string         `json:"topics,omitempty"`
	Sentiments   map[string]float64 `json:"sentiments,omitempty"`
}

type Metadata struct {
	Sources           []string `json:"sources"`
	RealAPIsUsed      bool     `json:"real_apis_used"`
	MarketSize        float64  `json:"market_size"`
	GrowthRate        float64  `json:"growth_rate"`
	NLPFeaturesUsed   bool     `json:"nlp_features_used"`
	ExtractionSummary string   `json:"extraction_summary,omitempty"`
}

type Output struct {
	RequestID      string                        `json:"request_id"`
	Status         string                        `json:"status"`
	Timestamp      time.Time                     `json:"timestamp"`
	ProcessingTime float64                       `json:"processing_time"`
	Segments       map[string]*Segment           `json:"market_segments"`
	SearchTrends   map[string]*SearchTrend       `json:"search_trends"`
	RegionInterest map[string]map[string]float64 `json:"region_interest,omitempty"`
	RelatedQueries map[string][]string           `json:"related_queries,omitempty"`
	NewsArticles   []NewsArticleRef              `json:"news_articles"`
	NewsAnalysis   *NewsAnalysis                 `json:"news_analysis,omitempty"`
	Metadata       Metadata                      `json:"metadata"`
	Error          string                        `json:"error,omitempty"`
}

type NewsArticleRef struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   float64   `json:"sentiment"`
}
