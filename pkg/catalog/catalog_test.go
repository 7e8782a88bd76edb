package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zen-systems/intentgate/pkg/adapter"
)

// countingEmbedder wraps a FixedEmbedder and counts Embed calls.
type countingEmbedder struct {
	*adapter.FixedEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.FixedEmbedder.Embed(ctx, text)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "agents.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testAgent(name string, priority int) *Agent {
	return &Agent{
		Name:          name,
		Description:   name + " handles " + name + " things",
		Keywords:      []string{name, "shared"},
		RegexPatterns: []string{`\b` + name + `\b`},
		Priority:      priority,
		Enabled:       true,
	}
}

func TestStoreRegisterAndList(t *testing.T) {
	store := testStore(t)

	for _, agent := range []*Agent{testAgent("todo", 30), testAgent("github", 10), testAgent("email", 20)} {
		if err := store.Register(agent); err != nil {
			t.Fatalf("failed to register %s: %v", agent.Name, err)
		}
	}

	agents, _, err := store.ListEnabled()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	for i, want := range []string{"github", "email", "todo"} {
		if agents[i].Name != want {
			t.Errorf("agent %d = %q, want %q (priority order)", i, agents[i].Name, want)
		}
	}
}

func TestStoreDisplayNameRoundTrip(t *testing.T) {
	store := testStore(t)

	agent := testAgent("github", 10)
	agent.DisplayName = "GitHub"
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	got, err := store.Get("github")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.DisplayName != "GitHub" {
		t.Errorf("display name = %q, want GitHub", got.DisplayName)
	}
}

func TestAgentDisplayNameDefaultsToName(t *testing.T) {
	store := testStore(t)

	if err := store.Register(testAgent("email", 10)); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	got, err := store.Get("email")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.DisplayName != "email" {
		t.Errorf("display name = %q, want the name as fallback", got.DisplayName)
	}
}

func TestStoreRegisterRejectsMalformedRegex(t *testing.T) {
	store := testStore(t)

	agent := testAgent("broken", 10)
	agent.RegexPatterns = []string{`[unclosed`}

	if err := store.Register(agent); err == nil {
		t.Fatal("malformed regex must be rejected at registration")
	}
}

func TestStoreRegisterUpdatesExisting(t *testing.T) {
	store := testStore(t)

	agent := testAgent("github", 10)
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	agent.Priority = 5
	agent.Keywords = []string{"github", "repo"}
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	got, err := store.Get("github")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Priority != 5 {
		t.Errorf("priority = %d, want 5", got.Priority)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("keywords = %v, want 2 entries", got.Keywords)
	}
}

func TestStoreDisableIsLogical(t *testing.T) {
	store := testStore(t)

	if err := store.Register(testAgent("github", 10)); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := store.SetEnabled("github", false); err != nil {
		t.Fatalf("failed to disable: %v", err)
	}

	enabled, _, err := store.ListEnabled()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("disabled agent still listed as enabled")
	}

	// The row survives for decision-log joins.
	got, err := store.Get("github")
	if err != nil {
		t.Fatalf("disabled agent must remain readable: %v", err)
	}
	if got.Enabled {
		t.Error("agent should be disabled")
	}
}

func TestStoreSetEnabledUnknownAgent(t *testing.T) {
	store := testStore(t)
	if err := store.SetEnabled("ghost", false); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestStoreEmbeddingRoundTrip(t *testing.T) {
	store := testStore(t)

	agent := testAgent("github", 10)
	agent.Embedding = []float32{0.25, -1, 0, 3.5}
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	got, err := store.Get("github")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if len(got.Embedding) != 4 {
		t.Fatalf("embedding length = %d, want 4", len(got.Embedding))
	}
	for i, v := range agent.Embedding {
		if got.Embedding[i] != v {
			t.Errorf("embedding[%d] = %f, want %f", i, got.Embedding[i], v)
		}
	}
}

func TestCatalogLoadComputesEmbeddings(t *testing.T) {
	store := testStore(t)
	agent := testAgent("github", 10)
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	fixed := adapter.NewFixedEmbedder(4)
	fixed.Set(agent.Description, []float32{1, 0, 0, 0})
	embedder := &countingEmbedder{FixedEmbedder: fixed}

	cat := New(store, embedder)
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	snapshot := cat.Snapshot()
	if len(snapshot) != 1 || len(snapshot[0].Embedding) != 4 {
		t.Fatalf("expected embedded agent in snapshot, got %+v", snapshot)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", embedder.calls)
	}

	// A second load sees the stored vector and an unchanged description, so
	// no recompute happens.
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if embedder.calls != 1 {
		t.Errorf("unchanged description must not recompute, got %d calls", embedder.calls)
	}
}

func TestCatalogRecomputesOnDescriptionChange(t *testing.T) {
	store := testStore(t)
	agent := testAgent("github", 10)
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	embedder := &countingEmbedder{FixedEmbedder: adapter.NewFixedEmbedder(4)}
	cat := New(store, embedder)
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", embedder.calls)
	}

	agent.Description = "a different description"
	if err := store.Register(agent); err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	if err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("failed to refresh: %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("changed description must recompute, got %d calls", embedder.calls)
	}
}

func TestCatalogRefreshKeepsStaleSnapshotOnFailure(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "agents.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := store.Register(testAgent("github", 10)); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	cat := New(store, &countingEmbedder{FixedEmbedder: adapter.NewFixedEmbedder(4)})
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	// Storage goes away; the last good snapshot keeps serving.
	store.Close()
	if err := cat.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error after store closed")
	}

	snapshot := cat.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Name != "github" {
		t.Fatalf("stale snapshot lost: %+v", snapshot)
	}
}

func TestAgentNormalizedKeywords(t *testing.T) {
	agent := &Agent{Keywords: []string{" GitHub ", "repo", "REPO", "", "issue"}}
	got := agent.NormalizedKeywords()
	want := []string{"github", "repo", "issue"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAgentValidateRequiresNameAndDescription(t *testing.T) {
	if err := (&Agent{Description: "x"}).Validate(); err == nil {
		t.Error("missing name must fail validation")
	}
	if err := (&Agent{Name: "x"}).Validate(); err == nil {
		t.Error("missing description must fail validation")
	}
}
