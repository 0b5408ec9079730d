package sidra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marketlens/backend/internal/cache/filecache"
)

const sampleResponse = `[
	{"V":"Valor","D1N":"Brasil","D2N":"Variável","D3N":"Categoria","MN":"Unidade"},
	{"V":"1.425,50","D1N":"Brasil","D1C":"1","D2N":"Despesa média","D2C":"10008","D3N":"Habitação","D3C":"114023","MN":"Reais"},
	{"V":"...","D1N":"Brasil","D1C":"1","D2N":"Despesa média","D2C":"10008","D3N":"Alimentação","D3C":"114024","MN":"Reais"}
]`

func validQuery() Query {
	return Query{
		Table:           "7482",
		Variables:       []string{"10008"},
		TerritoryLevel:  "1",
		TerritoryCode:   "1",
		Classifications: map[string]string{"11046": "all"},
		Period:          "2017-2018",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cache, err := filecache.NewStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	return NewClient(server.URL, 5*time.Second, cache, 3), server
}

func TestFetchNormalizesRows(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	}))

	rows, err := client.Fetch(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header dropped)", len(rows))
	}

	if rows[0].Value == nil || *rows[0].Value != 1425.50 {
		t.Errorf("row 0 value = %v, want 1425.50", rows[0].Value)
	}
	if rows[0].CategoryCode != "114023" {
		t.Errorf("row 0 category code = %q, want 114023", rows[0].CategoryCode)
	}
	if rows[1].Value != nil {
		t.Errorf("non-numeric value should normalize to nil, got %v", *rows[1].Value)
	}
}

func TestFetchCachesWithinTTL(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(sampleResponse))
	}))

	first, err := client.Fetch(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	second, err := client.Fetch(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("network hits = %d, want exactly 1", n)
	}

	if len(first) != len(second) {
		t.Fatalf("cached result shape differs: %d vs %d rows", len(first), len(second))
	}
	for i := range first {
		if first[i].CategoryCode != second[i].CategoryCode {
			t.Errorf("row %d differs between network and cache", i)
		}
	}
}

func TestFetchHeaderOnlyIsNoData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"V":"Valor","D1N":"Brasil"}]`))
	}))

	_, err := client.Fetch(context.Background(), validQuery())
	if !errors.Is(err, ErrNoDataReturned) {
		t.Errorf("got %v, want ErrNoDataReturned", err)
	}
}

func TestFetchRejectsInvalidQueryBeforeNetwork(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))

	bad := validQuery()
	bad.Table = "abc"

	_, err := client.Fetch(context.Background(), bad)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("got %v, want ErrInvalidQuery", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("invalid query must not reach the network")
	}

	bad = validQuery()
	bad.Variables = nil
	if _, err := client.Fetch(context.Background(), bad); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("missing variables: got %v, want ErrInvalidQuery", err)
	}

	bad = validQuery()
	bad.Classifications = map[string]string{"11046": "todas"}
	if _, err := client.Fetch(context.Background(), bad); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("bad classification value: got %v, want ErrInvalidQuery", err)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleResponse))
	}))
	client.retryCfg.InitialDelay = time.Millisecond

	rows, err := client.Fetch(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("network hits = %d, want 3", n)
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Fetch(context.Background(), validQuery())
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("got %v, want ErrTableNotFound", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("network hits = %d, want 1 (no retry on 404)", n)
	}
}

func TestParseLocaleFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"1.425,50", ptr(1425.50)},
		{"891,40", ptr(891.40)},
		{"1.234.567", ptr(1234567)},
		{"...", nil},
		{"-", nil},
		{"X", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := ParseLocaleFloat(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseLocaleFloat(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("ParseLocaleFloat(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }
