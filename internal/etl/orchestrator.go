package etl

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/metrics"
	"github.com/marketlens/backend/internal/news"
	"github.com/marketlens/backend/internal/psycho"
	"github.com/marketlens/backend/internal/sidra"
	"github.com/marketlens/backend/internal/transform"
	"github.com/marketlens/backend/internal/trends"
	"github.com/marketlens/backend/pkg/logger"
	"github.com/marketlens/backend/pkg/utils"
)

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusDegraded  = "degraded"

	StageMapping        = "mapping"
	StageExtraction     = "extraction"
	StageTransformation = "transformation"
	StageScoring        = "scoring"
	StageAssembly       = "assembly"
	StageDone           = "done"
)

type Request struct {
	RequestID   string   `json:"request_id,omitempty"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	Location    string   `json:"location,omitempty"`
	MaxArticles int      `json:"max_articles,omitempty"`
	DaysBack    int      `json:"days_back,omitempty"`
}

func (r *Request) normalize() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if len(r.Keywords) == 0 {
		r.Keywords = deriveKeywords(r.Description)
	}
	if r.Location == "" {
		r.Location = "brasil"
	}
	if r.MaxArticles <= 0 {
		r.MaxArticles = 10
	}
	if r.DaysBack <= 0 {
		r.DaysBack = 30
	}
}

func (r Request) cacheKey() (string, error) {
	return utils.HashJSON(map[string]interface{}{
		"description": r.Description,
		"keywords":    r.Keywords,
		"location":    r.Location,
	})
}

type StatsAPI interface {
	Fetch(ctx context.Context, q sidra.Query) ([]sidra.Row, error)
}

type TrendsAPI interface {
	InterestOverTime(ctx context.Context, keywords []string, timeframe string) *trends.Interest
	InterestByRegion(ctx context.Context, keywords []string, resolution string) *trends.RegionInterest
	RelatedQueries(ctx context.Context, keyword string) *trends.RelatedQueries
}

type NewsAPI interface {
	Fetch(ctx context.Context, keywords []string, maxArticles, daysBack int) ([]news.Article, error)
}

type OutputCache interface {
	GetAnalysis(ctx context.Context, key string) (*market.Output, bool)
	SetAnalysis(ctx context.Context, key string, out *market.Output) error
	IncrementMetric(ctx context.Context, name string) error
}

type Persister interface {
	SaveRun(ctx context.Context, req Request, out *market.Output) error
	RecordMetric(name string, value float64, tags map[string]string) error
}

type Options struct {
	Workers    int
	Timeout    time.Duration
	MarketSize float64
	GrowthRate float64
}

type Orchestrator struct {
	mapper   *sidra.Mapper
	stats    StatsAPI
	trends   TrendsAPI
	news     NewsAPI
	analyzer *psycho.Analyzer
	cache    OutputCache
	store    Persister
	pool     *Coordinator
	opts     Options

	// Progress, when set, receives pipeline stage notifications.
	Progress func(requestID, stage string)
}

func NewOrchestrator(mapper *sidra.Mapper, stats StatsAPI, trendsAPI TrendsAPI, newsAPI NewsAPI, analyzer *psycho.Analyzer, cache OutputCache, store Persister, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MarketSize <= 0 {
		opts.MarketSize = 150000
	}
	if opts.GrowthRate <= 0 {
		opts.GrowthRate = 0.07
	}
	return &Orchestrator{
		mapper:   mapper,
		stats:    stats,
		trends:   trendsAPI,
		news:     newsAPI,
		analyzer: analyzer,
		cache:    cache,
		store:    store,
		pool:     NewCoordinator(opts.Workers),
		opts:     opts,
	}
}

func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*market.Output, error) {
	req.normalize()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	cacheKey, err := req.cacheKey()
	if err != nil {
		return nil, fmt.Errorf("building cache key: %w", err)
	}
	if o.cache != nil {
		if cached, ok := o.cache.GetAnalysis(ctx, cacheKey); ok {
			metrics.RecordCacheHit("analysis")
			if err := o.cache.IncrementMetric(ctx, "analysis_cache_hits"); err != nil {
				logger.Debug("Failed to increment cache metric", zap.Error(err))
			}
			logger.Info("Analysis served from cache", zap.String("request_id", req.RequestID))
			return cached, nil
		}
		metrics.RecordCacheMiss("analysis")
		if err := o.cache.IncrementMetric(ctx, "analysis_cache_misses"); err != nil {
			logger.Debug("Failed to increment cache metric", zap.Error(err))
		}
	}

	o.notify(req.RequestID, StageMapping)
	location := o.resolveLocation(req.Location)
	spec := o.mapper.MapTerms(req.Keywords, "")

	o.notify(req.RequestID, StageExtraction)
	bundle := o.extract(ctx, req, location, spec)

	o.notify(req.RequestID, StageTransformation)
	classification := firstClassification(spec)
	segments := transform.Stats(classification, bundle.Stats.Rows)
	searchTrends := transform.Trends(bundle.Trends.Interest)
	newsAnalysis := transform.News(bundle.News.Articles)

	o.notify(req.RequestID, StageScoring)
	o.enrichSegments(ctx, req, segments)

	o.notify(req.RequestID, StageAssembly)
	out := o.assemble(req, bundle, segments, searchTrends, newsAnalysis, time.Since(start))

	if o.cache != nil && out.Status != StatusDegraded {
		if err := o.cache.SetAnalysis(ctx, cacheKey, out); err != nil {
			logger.Warn("Failed to cache analysis", zap.Error(err))
		}
	}
	if o.store != nil {
		if err := o.store.SaveRun(ctx, req, out); err != nil {
			logger.Warn("Failed to persist analysis run", zap.Error(err))
		}
		tags := map[string]string{"status": out.Status}
		if err := o.store.RecordMetric("analysis_processing_seconds", out.ProcessingTime, tags); err != nil {
			logger.Debug("Failed to record run metric", zap.Error(err))
		}
	}

	o.notify(req.RequestID, StageDone)
	metrics.RecordAnalysis(out.Status, time.Since(start))
	return out, nil
}

func (o *Orchestrator) resolveLocation(name string) sidra.Location {
	location, err := o.mapper.MapLocation(name)
	if err != nil {
		logger.Warn("Unknown location, defaulting to national aggregate",
			zap.String("location", name), zap.Error(err))
		return sidra.Location{Code: "1", Level: "1", Name: "Brasil"}
	}
	return location
}

func (o *Orchestrator) extract(ctx context.Context, req Request, location sidra.Location, spec sidra.ConceptSpec) *Bundle {
	bundle := &Bundle{}

	tasks := []Task{
		{Name: SourceStats, Run: func(ctx context.Context) error {
			timer := metrics.StartExtraction("stats")
			defer timer()
			rows, err := o.stats.Fetch(ctx, sidra.Query{
				Table:           spec.Table,
				Variables:       spec.Variables,
				TerritoryLevel:  location.Level,
				TerritoryCode:   location.Code,
				Classifications: spec.Classifications,
				Period:          spec.Period,
			})
			bundle.Stats = StatsOutcome{Concept: spec.Concept, Classification: firstClassification(spec), Rows: rows, Err: err}
			return err
		}},
		{Name: SourceTrends, Run: func(ctx context.Context) error {
			timer := metrics.StartExtraction("trends")
			defer timer()
			interest := o.trends.InterestOverTime(ctx, req.Keywords, "")
			outcome := TrendsOutcome{Interest: interest}
			if interest.Status != trends.StatusOK {
				outcome.Err = fmt.Errorf("interest over time: %s", interest.Message)
				bundle.Trends = outcome
				return outcome.Err
			}
			outcome.Regions = o.trends.InterestByRegion(ctx, req.Keywords, "")
			outcome.Related = map[string]*trends.RelatedQueries{}
			for _, keyword := range req.Keywords {
				outcome.Related[keyword] = o.trends.RelatedQueries(ctx, keyword)
			}
			bundle.Trends = outcome
			return nil
		}},
		{Name: SourceNews, Run: func(ctx context.Context) error {
			timer := metrics.StartExtraction("news")
			defer timer()
			// A day with no matching articles is still a successful scrape.
			articles, err := o.news.Fetch(ctx, req.Keywords, req.MaxArticles, req.DaysBack)
			outcome := NewsOutcome{Articles: articles, Err: err}
			bundle.News = outcome
			return outcome.Err
		}},
	}

	errs := o.pool.Run(ctx, tasks)
	for name, err := range errs {
		if err != nil {
			metrics.RecordSourceFailure(name)
			logger.Warn("Extraction source failed",
				zap.String("source", name),
				zap.String("request_id", req.RequestID),
				zap.Error(err),
			)
		}
	}
	// Tasks that never ran leave their slots empty; surface the pool error.
	if bundle.Stats.Err == nil && bundle.Stats.Rows == nil && errs[SourceStats] != nil {
		bundle.Stats.Err = errs[SourceStats]
	}
	if bundle.Trends.Err == nil && bundle.Trends.Interest == nil && errs[SourceTrends] != nil {
		bundle.Trends.Err = errs[SourceTrends]
	}
	if bundle.News.Err == nil && bundle.News.Articles == nil && errs[SourceNews] != nil {
		bundle.News.Err = errs[SourceNews]
	}
	return bundle
}

func (o *Orchestrator) enrichSegments(ctx context.Context, req Request, segments map[string]*market.Segment) {
	for name, segment := range segments {
		profile, err := o.analyzer.Analyze(ctx, psycho.Input{SegmentName: name, Keywords: req.Keywords})
		if err != nil {
			logger.Warn("Segment scoring failed",
				zap.String("segment", name), zap.Error(err))
			continue
		}
		sentiment := profile.Sentiment
		segment.Archetype = profile.Archetype
		segment.SentimentIndex = &sentiment
		segment.BehavioralCharacteristics = profile.BehavioralTrends
		segment.SpendingPriority = profile.DominantCategory
		metrics.RecordArchetype(profile.Archetype)
	}
}

func (o *Orchestrator) assemble(req Request, bundle *Bundle, segments map[string]*market.Segment, searchTrends map[string]*market.SearchTrend, newsAnalysis *market.NewsAnalysis, elapsed time.Duration) *market.Output {
	failed := map[string]bool{}
	for _, name := range bundle.FailedSources() {
		failed[name] = true
	}

	var sources []string
	for _, name := range []string{SourceStats, SourceTrends, SourceNews} {
		if failed[name] {
			sources = append(sources, name+" (Error Fallback)")
		} else {
			sources = append(sources, name)
		}
	}

	status := StatusCompleted
	switch len(failed) {
	case 0:
	case 3:
		status = StatusDegraded
	default:
		status = StatusPartial
	}

	out := &market.Output{
		RequestID:      req.RequestID,
		Status:         status,
		Timestamp:      time.Now(),
		ProcessingTime: elapsed.Seconds(),
		Segments:       segments,
		SearchTrends:   searchTrends,
		NewsArticles:   articleRefs(bundle.News.Articles, newsAnalysis),
		NewsAnalysis:   newsAnalysis,
		Metadata: market.Metadata{
			Sources:           sources,
			RealAPIsUsed:      len(failed) < 3,
			MarketSize:        o.opts.MarketSize,
			GrowthRate:        o.opts.GrowthRate,
			NLPFeaturesUsed:   newsAnalysis != nil && len(newsAnalysis.TopKeywords) > 0,
			ExtractionSummary: fmt.Sprintf("%d/3 sources succeeded", 3-len(failed)),
		},
	}
	if bundle.Trends.Regions != nil && bundle.Trends.Regions.Status == trends.StatusOK {
		out.RegionInterest = bundle.Trends.Regions.Regions
	}
	if len(bundle.Trends.Related) > 0 {
		related := map[string][]string{}
		for keyword, queries := range bundle.Trends.Related {
			if queries == nil || queries.Status != trends.StatusOK || len(queries.Top) == 0 {
				continue
			}
			related[keyword] = queries.Top
		}
		if len(related) > 0 {
			out.RelatedQueries = related
		}
	}
	if status == StatusDegraded {
		out.Error = "all extraction sources failed"
	}
	return out
}

func articleRefs(articles []news.Article, analysis *market.NewsAnalysis) []market.NewsArticleRef {
	refs := make([]market.NewsArticleRef, 0, len(articles))
	for _, article := range articles {
		ref := market.NewsArticleRef{
			Title:       article.Title,
			URL:         article.URL,
			Source:      article.Source,
			PublishedAt: article.PublishedAt,
		}
		if analysis != nil {
			ref.Sentiment = analysis.Sentiments[article.Title]
		}
		refs = append(refs, ref)
	}
	return refs
}

func firstClassification(spec sidra.ConceptSpec) string {
	first := ""
	for code := range spec.Classifications {
		if first == "" || code < first {
			first = code
		}
	}
	return first
}

func (o *Orchestrator) notify(requestID, stage string) {
	if o.Progress != nil {
		o.Progress(requestID, stage)
	}
}

var wordPattern = regexp.MustCompile(`[\p{L}\d]+`)

var descriptionStopwords = map[string]bool{
	"para": true, "com": true, "uma": true, "que": true, "dos": true,
	"das": true, "por": true, "loja": true, "empresa": true, "negocio": true,
	"negócio": true, "the": true, "and": true, "for": true,
}

func deriveKeywords(description string) []string {
	var keywords []string
	seen := map[string]bool{}
	for _, word := range wordPattern.FindAllString(strings.ToLower(description), -1) {
		if len([]rune(word)) <= 2 || descriptionStopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}
