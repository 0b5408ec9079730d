package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marketlens/backend/internal/etl"
	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return client
}

func TestInsertAndGetRun(t *testing.T) {
	client := newTestClient(t)

	run := &models.AnalysisRun{
		ID:             "run-1",
		Description:    "academia de ginástica",
		Keywords:       []string{"academia", "fitness"},
		Location:       "sp",
		Status:         "completed",
		SegmentCount:   3,
		ArticleCount:   5,
		Output:         `{"request_id":"run-1"}`,
		ProcessingTime: 1.25,
		CreatedAt:      time.Now(),
	}
	if err := client.InsertRun(run); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := client.GetRun("run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Description != run.Description || got.Status != "completed" {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "academia" {
		t.Errorf("keywords not restored: %v", got.Keywords)
	}
}

func TestGetRunMissing(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.GetRun("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestListRunsOrdered(t *testing.T) {
	client := newTestClient(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		run := &models.AnalysisRun{
			ID:        id,
			Status:    "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := client.InsertRun(run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := client.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("unexpected order: %v, %v", runs[0].ID, runs[1].ID)
	}
}

func TestSaveRunRecordsSources(t *testing.T) {
	client := newTestClient(t)

	out := &market.Output{
		RequestID: "run-2",
		Status:    "partial",
		Timestamp: time.Now(),
		Metadata: market.Metadata{
			Sources: []string{"IBGE-SIDRA", "Google Trends (Error Fallback)", "Government News"},
		},
	}
	req := etl.Request{Description: "padaria artesanal", Keywords: []string{"padaria"}, Location: "brasil"}

	if err := client.SaveRun(context.Background(), req, out); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := client.GetRun("run-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "partial" || got.Description != "padaria artesanal" {
		t.Errorf("unexpected run: %+v", got)
	}

	rows, err := client.db.Query(`SELECT source, succeeded FROM run_sources WHERE run_id = ? ORDER BY id`, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	type rec struct {
		source    string
		succeeded int
	}
	var recs []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.source, &r.succeeded); err != nil {
			t.Fatal(err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 source records, got %d", len(recs))
	}
	if recs[1].source != "Google Trends" || recs[1].succeeded != 0 {
		t.Errorf("expected failed trends record, got %+v", recs[1])
	}
}
