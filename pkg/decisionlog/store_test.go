package decisionlog

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/intentgate/pkg/router"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testDecision(tier int, agent string) *router.Decision {
	return &router.Decision{
		ID:            uuid.NewString(),
		ChatContextID: "ctx-1",
		UserMessage:   "open a github issue",
		TierUsed:      tier,
		SelectedAgent: agent,
		Confidence:    0.9,
		BM25Scores:    map[string]float64{"github": 1.0, "email": 0.2},
		EmbedScores:   map[string]float64{"github": 0.8, "email": 0.5},
		LatencyMs:     12,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInsertAndList(t *testing.T) {
	store := testStore(t)

	d := testDecision(2, "github")
	if err := store.Insert(d); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	decisions, err := store.List(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}

	got := decisions[0]
	if got.ID != d.ID || got.SelectedAgent != "github" || got.TierUsed != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.BM25Scores["github"] != 1.0 || got.EmbedScores["email"] != 0.5 {
		t.Errorf("score maps lost: bm25=%v embed=%v", got.BM25Scores, got.EmbedScores)
	}
	if got.Correct != nil {
		t.Error("fresh decision must have no feedback")
	}
}

func TestInsertNoSelection(t *testing.T) {
	store := testStore(t)

	d := testDecision(3, "")
	d.ChatContextID = ""
	d.BM25Scores = nil
	d.EmbedScores = nil
	if err := store.Insert(d); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	decisions, err := store.List(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	got := decisions[0]
	if got.SelectedAgent != "" || got.ChatContextID != "" {
		t.Errorf("null fields must round trip as empty, got %+v", got)
	}
	if got.BM25Scores != nil || got.EmbedScores != nil {
		t.Errorf("empty score maps must stay nil, got bm25=%v embed=%v", got.BM25Scores, got.EmbedScores)
	}
}

func TestAttachFeedbackIdempotent(t *testing.T) {
	store := testStore(t)

	d := testDecision(1, "github")
	if err := store.Insert(d); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.AttachFeedback(d.ID, true); err != nil {
			t.Fatalf("feedback attempt %d failed: %v", i+1, err)
		}
	}

	decisions, err := store.List(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if decisions[0].Correct == nil || !*decisions[0].Correct {
		t.Errorf("feedback not recorded: %+v", decisions[0].Correct)
	}
}

func TestAttachFeedbackUnknownDecision(t *testing.T) {
	store := testStore(t)
	if err := store.AttachFeedback("no-such-id", true); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}

func TestExportJSONLines(t *testing.T) {
	store := testStore(t)

	first := testDecision(1, "github")
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	second := testDecision(2, "email")
	for _, d := range []*router.Decision{first, second} {
		if err := store.Insert(d); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := store.Export(&buf); err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	dec := json.NewDecoder(&buf)
	var ids []string
	for dec.More() {
		var d router.Decision
		if err := dec.Decode(&d); err != nil {
			t.Fatalf("bad JSON line: %v", err)
		}
		ids = append(ids, d.ID)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 exported rows, got %d", len(ids))
	}
	if ids[0] != first.ID {
		t.Errorf("export must be oldest first")
	}
}

func TestStats(t *testing.T) {
	store := testStore(t)

	correct := testDecision(2, "github")
	wrong := testDecision(2, "email")
	unjudged := testDecision(1, "github")
	for _, d := range []*router.Decision{correct, wrong, unjudged} {
		if err := store.Insert(d); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := store.AttachFeedback(correct.ID, true); err != nil {
		t.Fatalf("failed to attach feedback: %v", err)
	}
	if err := store.AttachFeedback(wrong.ID, false); err != nil {
		t.Fatalf("failed to attach feedback: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	tier2 := stats.ByTier[2]
	if tier2 == nil || tier2.Decisions != 2 || tier2.WithFeedback != 2 || tier2.Correct != 1 {
		t.Errorf("tier 2 stats = %+v", tier2)
	}
	tier1 := stats.ByTier[1]
	if tier1 == nil || tier1.WithFeedback != 0 {
		t.Errorf("tier 1 stats = %+v", tier1)
	}
}

func TestLoggerPersistsAsync(t *testing.T) {
	store := testStore(t)
	logger := NewLogger(store)

	d := testDecision(1, "github")
	logger.Record(d)
	logger.Close()

	decisions, err := store.List(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(decisions) != 1 || decisions[0].ID != d.ID {
		t.Fatalf("decision not persisted: %+v", decisions)
	}
}

func TestLoggerRecordAfterCloseDoesNotPanic(t *testing.T) {
	store := testStore(t)
	logger := NewLogger(store)

	before := testDecision(1, "github")
	logger.Record(before)
	logger.Close()

	// A straggler after shutdown is dropped, never a panic.
	logger.Record(testDecision(1, "email"))
	logger.Close()

	decisions, err := store.List(10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(decisions) != 1 || decisions[0].ID != before.ID {
		t.Fatalf("expected only the pre-close decision, got %+v", decisions)
	}
}

func TestLoggerRecordNeverBlocks(t *testing.T) {
	store := testStore(t)
	logger := NewLogger(store, WithQueueSize(1), WithRetry(0, time.Millisecond))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			logger.Record(testDecision(1, "github"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Record blocked the caller")
	}
	logger.Close()
}
