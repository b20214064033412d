package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/store"
)

func TestRunArchiveRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "monkey",
				"POSTGRES_PASSWORD": "monkey",
				"POSTGRES_DB":       "monkey",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://monkey:monkey@%s:%s/monkey?sslmode=disable", host, port.Port())

	if err := applySchema(ctx, dsn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	st, err := store.OpenDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	runID := uuid.NewString()
	res := &research.Result{
		RunID:  runID,
		Topic:  "integration topic",
		Report: "## Summary\n\nfindings",
		State: &research.State{
			RunningSummary:    "running summary",
			SearchStrategy:    research.StrategyWebSearch,
			IntentResult:      map[string]any{"intent": "comprehensive_research"},
			ResearchLoopCount: 2,
			PromptTokens:      120,
			CompletionTokens:  80,
			SourcesGathered: []research.Source{
				{Title: "A", URL: "https://arxiv.org/abs/1", Reliability: "High", SourceType: "Peer-Reviewed Preprint"},
			},
		},
		Duration: 1500 * time.Millisecond,
	}

	if err := st.SaveRun(ctx, res); err != nil {
		t.Fatalf("save run: %v", err)
	}
	// upsert: saving again must not error or duplicate
	res.Report = "## Summary\n\nrevised findings"
	if err := st.SaveRun(ctx, res); err != nil {
		t.Fatalf("re-save run: %v", err)
	}

	rec, ok, err := st.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("saved run not found")
	}
	if rec.Report != "## Summary\n\nrevised findings" {
		t.Fatalf("upsert did not overwrite report: %q", rec.Report)
	}
	if len(rec.Sources) != 1 || rec.Sources[0].URL != "https://arxiv.org/abs/1" {
		t.Fatalf("sources not preserved: %+v", rec.Sources)
	}
	if rec.LoopCount != 2 || rec.DurationMS != 1500 {
		t.Fatalf("run metadata wrong: %+v", rec)
	}
	if rec.Intent != "comprehensive_research" || rec.Strategy != research.StrategyWebSearch {
		t.Fatalf("intent/strategy not preserved: %+v", rec)
	}
	if rec.PromptTokens != 120 || rec.CompletionTokens != 80 {
		t.Fatalf("token accounting not preserved: %+v", rec)
	}

	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("list runs = %+v", runs)
	}

	_, ok, err = st.GetRun(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("get missing run: %v", err)
	}
	if ok {
		t.Fatal("missing run reported as found")
	}
}

func applySchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaSQL := `
CREATE TABLE IF NOT EXISTS research_runs (
  id UUID PRIMARY KEY,
  topic TEXT NOT NULL,
  report TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  sources JSONB NOT NULL DEFAULT '[]'::jsonb,
  intent TEXT NOT NULL DEFAULT '',
  strategy TEXT NOT NULL DEFAULT '',
  loop_count INTEGER NOT NULL DEFAULT 0,
  prompt_tokens BIGINT NOT NULL DEFAULT 0,
  completion_tokens BIGINT NOT NULL DEFAULT 0,
  duration_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	_, err = db.ExecContext(ctx, schemaSQL)
	return err
}
