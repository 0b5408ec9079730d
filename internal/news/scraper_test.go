package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newsServer(t *testing.T) *httptest.Server {
	t.Helper()

	recent := time.Now().AddDate(0, 0, -2).Format("2006-01-02")
	old := time.Now().AddDate(0, 0, -90).Format("2006-01-02")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/noticias/mercado-de-tecnologia">Mercado</a>
			<a href="/noticias/inflacao-em-queda">Inflação</a>
			<a href="/noticias/arquivo-antigo">Arquivo</a>
			<a href="/institucional/sobre">Sobre</a>
			<a href="#topo">Topo</a>
			<a href="https://outro-site.example.com/noticias/externa">Externa</a>
		</body></html>`)
	})
	mux.HandleFunc("/noticias/mercado-de-tecnologia", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Mercado de tecnologia cresce</h1>
			<article>O setor de tecnologia registrou expansão.</article>
			<time>%s</time></body></html>`, recent)
	})
	mux.HandleFunc("/noticias/inflacao-em-queda", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Inflação em queda</h1>
			<article>Os preços desaceleraram no trimestre.</article>
			<time>%s</time></body></html>`, recent)
	})
	mux.HandleFunc("/noticias/arquivo-antigo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Arquivo antigo</h1>
			<article>Notícia fora da janela.</article>
			<time>%s</time></body></html>`, old)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestScraper(sources ...string) *Scraper {
	return NewScraper(sources, 5*time.Second, time.Millisecond)
}

func TestFetchCollectsRecentArticles(t *testing.T) {
	server := newsServer(t)
	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), []string{"tecnologia"}, 10, 30)
	if err != nil {
		t.Fatal(err)
	}

	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2 (old one filtered by recency)", len(articles))
	}

	for _, a := range articles {
		if a.Title == "Arquivo antigo" {
			t.Error("article outside the recency window should be dropped")
		}
		if a.Source == "" || a.URL == "" {
			t.Errorf("article missing source/url: %+v", a)
		}
	}
}

func TestFetchTagsMatchedKeywords(t *testing.T) {
	server := newsServer(t)
	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), []string{"tecnologia"}, 10, 30)
	if err != nil {
		t.Fatal(err)
	}

	var tagged *Article
	for i := range articles {
		if articles[i].Title == "Mercado de tecnologia cresce" {
			tagged = &articles[i]
		}
	}
	if tagged == nil {
		t.Fatal("expected the tecnologia article to be present")
	}
	if len(tagged.Keywords) != 1 || tagged.Keywords[0] != "tecnologia" {
		t.Errorf("keywords = %v, want [tecnologia]", tagged.Keywords)
	}
}

func TestFetchIgnoresDisallowedAndNonNewsLinks(t *testing.T) {
	server := newsServer(t)
	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), nil, 10, 30)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range articles {
		if a.URL == server.URL+"/institucional/sobre" {
			t.Error("non-news URL should be filtered out")
		}
		if a.Source == "outro-site.example.com" {
			t.Error("disallowed domain should be filtered out")
		}
	}
}

func TestFetchTruncatesToMax(t *testing.T) {
	server := newsServer(t)
	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), nil, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 {
		t.Errorf("got %d articles, want 1", len(articles))
	}
}

func TestFetchDeduplicatesAcrossSources(t *testing.T) {
	server := newsServer(t)
	scraper := newTestScraper(server.URL, server.URL)

	articles, err := scraper.Fetch(context.Background(), nil, 10, 30)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	for _, a := range articles {
		seen[a.URL]++
	}
	for url, count := range seen {
		if count > 1 {
			t.Errorf("article %s appears %d times, want 1", url, count)
		}
	}
}

func TestFetchFailsWhenEverySourceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), []string{"qualquer"}, 10, 30)
	if err == nil {
		t.Error("expected error when every source fails")
	}
	if len(articles) != 0 {
		t.Errorf("got %d articles from a failing source, want 0", len(articles))
	}
}

func TestFetchEmptyDayIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/institucional/sobre">Sobre</a></body></html>`)
	}))
	t.Cleanup(server.Close)

	scraper := newTestScraper(server.URL)

	articles, err := scraper.Fetch(context.Background(), []string{"qualquer"}, 10, 30)
	if err != nil {
		t.Errorf("reachable source with no news links should succeed, got %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("got %d articles, want 0", len(articles))
	}
}
