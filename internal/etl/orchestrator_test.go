package etl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/news"
	"github.com/marketlens/backend/internal/psycho"
	"github.com/marketlens/backend/internal/sidra"
	"github.com/marketlens/backend/internal/trends"
)

func value(v float64) *float64 { return &v }

type fakeStats struct {
	rows  []sidra.Row
	err   error
	calls int
}

func (f *fakeStats) Fetch(_ context.Context, _ sidra.Query) ([]sidra.Row, error) {
	f.calls++
	return f.rows, f.err
}

type fakeTrends struct {
	fail bool
}

func (f *fakeTrends) InterestOverTime(_ context.Context, keywords []string, _ string) *trends.Interest {
	if f.fail {
		return &trends.Interest{Status: trends.StatusError, Message: "unreachable"}
	}
	series := map[string][]trends.Point{}
	for _, kw := range keywords {
		series[kw] = []trends.Point{{Date: "2026-07-01", Value: 40}, {Date: "2026-08-01", Value: 60}}
	}
	return &trends.Interest{Status: trends.StatusOK, Series: series}
}

func (f *fakeTrends) InterestByRegion(_ context.Context, _ []string, _ string) *trends.RegionInterest {
	return &trends.RegionInterest{Status: trends.StatusOK}
}

func (f *fakeTrends) RelatedQueries(_ context.Context, _ string) *trends.RelatedQueries {
	return &trends.RelatedQueries{Status: trends.StatusOK, Top: []string{"related"}}
}

type fakeNews struct {
	articles []news.Article
	err      error
}

func (f *fakeNews) Fetch(_ context.Context, _ []string, _, _ int) ([]news.Article, error) {
	return f.articles, f.err
}

type memoryCache struct {
	items    map[string]*market.Output
	hits     int
	counters map[string]int64
}

func (c *memoryCache) GetAnalysis(_ context.Context, key string) (*market.Output, bool) {
	out, ok := c.items[key]
	if ok {
		c.hits++
	}
	return out, ok
}

func (c *memoryCache) SetAnalysis(_ context.Context, key string, out *market.Output) error {
	if c.items == nil {
		c.items = map[string]*market.Output{}
	}
	c.items[key] = out
	return nil
}

func (c *memoryCache) IncrementMetric(_ context.Context, name string) error {
	if c.counters == nil {
		c.counters = map[string]int64{}
	}
	c.counters[name]++
	return nil
}

type fakePersister struct {
	saved   []*market.Output
	metrics map[string]float64
}

func (p *fakePersister) SaveRun(_ context.Context, _ Request, out *market.Output) error {
	p.saved = append(p.saved, out)
	return nil
}

func (p *fakePersister) RecordMetric(name string, value float64, _ map[string]string) error {
	if p.metrics == nil {
		p.metrics = map[string]float64{}
	}
	p.metrics[name] = value
	return nil
}

func sampleRows() []sidra.Row {
	return []sidra.Row{
		{Value: value(1425.50), Variable: "Despesa monetária", VariableCode: "10008", Category: "Habitação", CategoryCode: "114023"},
		{Value: value(1085.30), Variable: "Despesa monetária", VariableCode: "10008", Category: "Alimentação", CategoryCode: "114024"},
	}
}

func sampleArticles() []news.Article {
	return []news.Article{
		{Title: "Crescimento do setor", Content: "expansão recorde nas vendas", Source: "agenciabrasil.ebc.com.br", URL: "https://agenciabrasil.ebc.com.br/noticias/1", PublishedAt: time.Now()},
	}
}

func newTestOrchestrator(stats *fakeStats, trendsAPI TrendsAPI, newsAPI NewsAPI, cache OutputCache, store Persister) *Orchestrator {
	analyzer := psycho.NewAnalyzer(
		psycho.NewPOFProvider(&fakeStats{err: errors.New("down")}, sidra.NewMapper(), nil), nil)
	return NewOrchestrator(sidra.NewMapper(), stats, trendsAPI, newsAPI, analyzer, cache, store, Options{Workers: 3, Timeout: 5 * time.Second})
}

func TestAnalyzeCompleted(t *testing.T) {
	stats := &fakeStats{rows: sampleRows()}
	persister := &fakePersister{}
	o := newTestOrchestrator(stats, &fakeTrends{}, &fakeNews{articles: sampleArticles()}, &memoryCache{}, persister)

	out, err := o.Analyze(context.Background(), Request{
		Description: "Academia de ginástica em São Paulo",
		Keywords:    []string{"academia", "fitness"},
		Location:    "sp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Status != StatusCompleted {
		t.Errorf("expected completed, got %q (sources %v)", out.Status, out.Metadata.Sources)
	}
	if out.RequestID == "" {
		t.Error("expected generated request ID")
	}
	if len(out.Segments) == 0 {
		t.Fatal("expected market segments")
	}
	for name, segment := range out.Segments {
		if segment.Archetype == "" {
			t.Errorf("segment %s not enriched with archetype", name)
		}
		if segment.SentimentIndex == nil {
			t.Errorf("segment %s missing sentiment index", name)
		}
	}
	if len(out.SearchTrends) != 2 {
		t.Errorf("expected 2 search trends, got %d", len(out.SearchTrends))
	}
	if len(out.NewsArticles) != 1 {
		t.Errorf("expected 1 news article ref, got %d", len(out.NewsArticles))
	}
	if !out.Metadata.RealAPIsUsed {
		t.Error("expected real APIs flag")
	}
	if got := out.RelatedQueries["academia"]; len(got) != 1 || got[0] != "related" {
		t.Errorf("unexpected related queries: %v", out.RelatedQueries)
	}
	if out.Metadata.MarketSize != 150000 || out.Metadata.GrowthRate != 0.07 {
		t.Errorf("unexpected market metadata: %+v", out.Metadata)
	}
	if len(persister.saved) != 1 {
		t.Errorf("expected 1 persisted run, got %d", len(persister.saved))
	}
	if _, ok := persister.metrics["analysis_processing_seconds"]; !ok {
		t.Errorf("expected run duration metric, got %v", persister.metrics)
	}
}

func TestAnalyzePartialOnTrendsFailure(t *testing.T) {
	stats := &fakeStats{rows: sampleRows()}
	o := newTestOrchestrator(stats, &fakeTrends{fail: true}, &fakeNews{articles: sampleArticles()}, nil, nil)

	out, err := o.Analyze(context.Background(), Request{Keywords: []string{"academia"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Status != StatusPartial {
		t.Errorf("expected partial, got %q", out.Status)
	}
	found := false
	for _, source := range out.Metadata.Sources {
		if source == SourceTrends+" (Error Fallback)" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected trends fallback marker, got %v", out.Metadata.Sources)
	}
	if len(out.Segments) == 0 {
		t.Error("stats segments should survive trends failure")
	}
	if len(out.SearchTrends) != 0 {
		t.Errorf("expected no search trends, got %v", out.SearchTrends)
	}
}

func TestAnalyzeDegradedWhenAllSourcesFail(t *testing.T) {
	o := newTestOrchestrator(&fakeStats{err: errors.New("api down")}, &fakeTrends{fail: true}, &fakeNews{err: errors.New("all news sources failed")}, nil, nil)

	out, err := o.Analyze(context.Background(), Request{Keywords: []string{"academia"}})
	if err != nil {
		t.Fatalf("expected degraded output, not error: %v", err)
	}

	if out.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", out.Status)
	}
	if out.Error == "" {
		t.Error("expected error message on degraded output")
	}
	if out.Metadata.RealAPIsUsed {
		t.Error("no real APIs succeeded")
	}
	for _, source := range out.Metadata.Sources {
		if !strings.Contains(source, "(Error Fallback)") {
			t.Errorf("expected fallback marker on %q", source)
		}
	}
}

func TestAnalyzeEmptyNewsDayStaysCompleted(t *testing.T) {
	o := newTestOrchestrator(&fakeStats{rows: sampleRows()}, &fakeTrends{}, &fakeNews{}, nil, nil)

	out, err := o.Analyze(context.Background(), Request{Keywords: []string{"academia"}})
	if err != nil {
		t.Fatal(err)
	}

	if out.Status != StatusCompleted {
		t.Errorf("expected completed, got %q (sources %v)", out.Status, out.Metadata.Sources)
	}
	for _, source := range out.Metadata.Sources {
		if strings.Contains(source, "(Error Fallback)") {
			t.Errorf("unexpected fallback marker on %q", source)
		}
	}
	if len(out.NewsArticles) != 0 {
		t.Errorf("expected no article refs, got %d", len(out.NewsArticles))
	}
}

func TestAnalyzeServedFromCache(t *testing.T) {
	stats := &fakeStats{rows: sampleRows()}
	cache := &memoryCache{}
	o := newTestOrchestrator(stats, &fakeTrends{}, &fakeNews{articles: sampleArticles()}, cache, nil)

	req := Request{Keywords: []string{"academia"}, Location: "brasil"}
	first, err := o.Analyze(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	calls := stats.calls

	second, err := o.Analyze(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if stats.calls != calls {
		t.Error("expected cached result, stats API called again")
	}
	if cache.hits != 1 {
		t.Errorf("expected 1 cache hit, got %d", cache.hits)
	}
	if cache.counters["analysis_cache_hits"] != 1 || cache.counters["analysis_cache_misses"] != 1 {
		t.Errorf("unexpected cache counters: %v", cache.counters)
	}
	if second.RequestID != first.RequestID {
		t.Error("cached output should be returned as stored")
	}
}

func TestAnalyzeProgressStages(t *testing.T) {
	o := newTestOrchestrator(&fakeStats{rows: sampleRows()}, &fakeTrends{}, &fakeNews{articles: sampleArticles()}, nil, nil)

	var stages []string
	o.Progress = func(_, stage string) { stages = append(stages, stage) }

	if _, err := o.Analyze(context.Background(), Request{Keywords: []string{"academia"}}); err != nil {
		t.Fatal(err)
	}

	want := []string{StageMapping, StageExtraction, StageTransformation, StageScoring, StageAssembly, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("expected %d stages, got %v", len(want), stages)
	}
	for i, stage := range want {
		if stages[i] != stage {
			t.Errorf("stage %d: expected %q, got %q", i, stage, stages[i])
		}
	}
}

func TestDeriveKeywords(t *testing.T) {
	got := deriveKeywords("Loja de tecnologia sustentável para o público jovem da cidade")
	want := []string{"tecnologia", "sustentável", "público", "jovem", "cidade"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if got := deriveKeywords(""); len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}
