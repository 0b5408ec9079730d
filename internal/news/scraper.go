package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketlens/backend/pkg/logger"
)

type Article struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Keywords    []string  `json:"keywords,omitempty"`
}

type selectorSet struct {
	title   string
	content string
	date    string
}

var siteSelectors = map[string]selectorSet{
	"agenciabrasil.ebc.com.br": {
		title:   "h1.documentFirstHeading",
		content: "div.documentDescription, div.entry-content",
		date:    "span.documentPublished > span.value",
	},
	"www.ibge.gov.br": {
		title:   "h1.documentFirstHeading",
		content: "div.documentDescription, div.entry-content",
		date:    "span.documentPublished > span.value",
	},
}

var defaultSelectors = selectorSet{
	title:   "h1, h2.article-title",
	content: "article, div.article-content, div.entry-content",
	date:    "time, span.date, div.date",
}

var newsURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`.*/noticias/.*`),
	regexp.MustCompile(`.*/ultimas-noticias/.*`),
	regexp.MustCompile(`.*/agencia-.+`),
	regexp.MustCompile(`.*/[0-9]{4}/[0-9]{2}/[0-9]{2}/.*`),
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15h04",
	"02/01/2006",
}

type Scraper struct {
	sources []string
	http    *http.Client
	limiter *rate.Limiter
}

func NewScraper(sources []string, timeout time.Duration, minDelay time.Duration) *Scraper {
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}

	return &Scraper{
		sources: sources,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

func (s *Scraper) Fetch(ctx context.Context, keywords []string, maxArticles, daysBack int) ([]Article, error) {
	if maxArticles <= 0 {
		maxArticles = 10
	}
	if daysBack <= 0 {
		daysBack = 30
	}

	minDate := time.Now().AddDate(0, 0, -daysBack)
	var articles []Article
	var failed int

	for _, source := range s.sources {
		if len(articles) >= maxArticles {
			break
		}

		found, err := s.searchSource(ctx, source, keywords, maxArticles-len(articles), minDate)
		if err != nil {
			failed++
			logger.Warn("News source failed",
				zap.String("source", source),
				zap.Error(err),
			)
			continue
		}

		articles = append(articles, found...)
	}

	if len(s.sources) > 0 && failed == len(s.sources) {
		return nil, fmt.Errorf("all %d news sources failed", failed)
	}

	articles = dedupe(articles)

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}

	logger.Info("News fetch complete",
		zap.Int("articles", len(articles)),
		zap.Strings("keywords", keywords),
	)

	return articles, nil
}

func (s *Scraper) searchSource(ctx context.Context, source string, keywords []string, maxArticles int, minDate time.Time) ([]Article, error) {
	doc, err := s.get(ctx, source)
	if err != nil {
		return nil, err
	}

	links := s.findNewsLinks(doc, source)

	var articles []Article
	for _, link := range links {
		if len(articles) >= maxArticles {
			break
		}

		article, err := s.extractArticle(ctx, link, keywords)
		if err != nil {
			logger.Debug("Skipping article", zap.String("url", link), zap.Error(err))
			continue
		}

		if article.PublishedAt.Before(minDate) {
			continue
		}

		articles = append(articles, *article)
	}

	return articles, nil
}

func (s *Scraper) findNewsLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		full := baseURL.ResolveReference(ref)

		if !s.isAllowedHost(full.Host) {
			return
		}
		if !isNewsURL(full.Path) {
			return
		}

		abs := full.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	return links
}

func (s *Scraper) extractArticle(ctx context.Context, articleURL string, keywords []string) (*Article, error) {
	doc, err := s.get(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(articleURL)
	if err != nil {
		return nil, err
	}

	selectors, ok := siteSelectors[parsed.Host]
	if !ok {
		selectors = defaultSelectors
	}

	title := strings.TrimSpace(doc.Find(selectors.title).First().Text())
	if title == "" {
		return nil, fmt.Errorf("no title found at %s", articleURL)
	}

	var content strings.Builder
	doc.Find(selectors.content).Each(func(_ int, sel *goquery.Selection) {
		content.WriteString(strings.TrimSpace(sel.Text()))
		content.WriteString("\n")
	})

	published := parseDate(doc, selectors.date)

	return &Article{
		Title:       title,
		Content:     strings.TrimSpace(content.String()),
		URL:         articleURL,
		Source:      parsed.Host,
		PublishedAt: published,
		Keywords:    matchedKeywords(title+" "+content.String(), keywords),
	}, nil
}

func (s *Scraper) get(ctx context.Context, target string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.8,en;q=0.3")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news endpoint returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news page: %w", err)
	}

	return doc, nil
}

func (s *Scraper) isAllowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, source := range s.sources {
		parsed, err := url.Parse(source)
		if err != nil {
			continue
		}
		if strings.Contains(host, strings.ToLower(parsed.Host)) {
			return true
		}
	}
	return false
}

func isNewsURL(path string) bool {
	for _, pattern := range newsURLPatterns {
		if pattern.MatchString(path) {
			return true
		}
	}
	return false
}

func parseDate(doc *goquery.Document, selector string) time.Time {
	raw := strings.TrimSpace(doc.Find(selector).First().Text())
	if raw == "" {
		if val, ok := doc.Find("time").First().Attr("datetime"); ok {
			raw = strings.TrimSpace(val)
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	return time.Now()
}

func matchedKeywords(text string, keywords []string) []string {
	lowered := strings.ToLower(text)

	var matched []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func dedupe(articles []Article) []Article {
	seen := map[string]bool{}
	out := articles[:0:0]

	for _, a := range articles {
		key := a.URL
		if key == "" {
			key = a.Title + "|" + a.PublishedAt.Format(time.RFC3339)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}

	return out
}
