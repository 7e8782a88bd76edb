package catalog

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/zen-systems/intentgate/pkg/adapter"
)

// Catalog caches the enabled agent set for the router.
//
// The cached snapshot is immutable between refreshes. Refresh builds a new
// slice and swaps it in atomically, so concurrent readers never observe a
// partially updated agent list.
type Catalog struct {
	store    *Store
	embedder adapter.EmbeddingProvider

	snapshot atomic.Pointer[[]*Agent]
}

// New creates a catalog over the given store. The embedder may be nil, in
// which case stale or missing embeddings are left as-is and the hybrid tier
// degrades to lexical-only scoring for those agents.
func New(store *Store, embedder adapter.EmbeddingProvider) *Catalog {
	c := &Catalog{store: store, embedder: embedder}
	empty := []*Agent{}
	c.snapshot.Store(&empty)
	return c
}

// Load reads all enabled agents from storage into the cache. A load failure
// at startup is fatal for routing, so the error is returned as-is for the
// caller to act on.
func (c *Catalog) Load(ctx context.Context) error {
	agents, err := c.build(ctx)
	if err != nil {
		return err
	}
	c.snapshot.Store(&agents)
	return nil
}

// Refresh reloads the cache. On failure the last good snapshot keeps
// serving; the error is logged and returned for callers that care.
func (c *Catalog) Refresh(ctx context.Context) error {
	agents, err := c.build(ctx)
	if err != nil {
		log.Printf("[catalog] refresh failed, keeping previous snapshot: %v", err)
		return err
	}
	c.snapshot.Store(&agents)
	return nil
}

// Snapshot returns the currently cached agents ordered by priority
// ascending. The returned slice must not be mutated.
func (c *Catalog) Snapshot() []*Agent {
	return *c.snapshot.Load()
}

// build loads enabled agents, validates them, and recomputes any embedding
// whose source description changed since it was stored.
func (c *Catalog) build(ctx context.Context) ([]*Agent, error) {
	agents, hashes, err := c.store.ListEnabled()
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	seen := make(map[string]bool, len(agents))
	for i, agent := range agents {
		if seen[agent.Name] {
			return nil, fmt.Errorf("duplicate enabled agent %q", agent.Name)
		}
		seen[agent.Name] = true

		if err := agent.Validate(); err != nil {
			return nil, err
		}

		if err := c.ensureEmbedding(ctx, agent, hashes[i]); err != nil {
			// Embedding providers are allowed to be down; the hybrid tier
			// handles missing vectors. Keep serving the agent.
			log.Printf("[catalog] embedding for %q unavailable: %v", agent.Name, err)
		}
	}

	if dim := embeddingDimension(agents); dim > 0 {
		for _, agent := range agents {
			if len(agent.Embedding) > 0 && len(agent.Embedding) != dim {
				return nil, fmt.Errorf("agent %q: embedding dimension %d, expected %d",
					agent.Name, len(agent.Embedding), dim)
			}
		}
	}

	return agents, nil
}

// ensureEmbedding recomputes the agent's embedding when the description
// changed since the stored vector was computed, or when no vector exists.
func (c *Catalog) ensureEmbedding(ctx context.Context, agent *Agent, storedHash string) error {
	currentHash := agent.DescriptionHash()
	if len(agent.Embedding) > 0 && storedHash == currentHash {
		return nil
	}
	if c.embedder == nil {
		if len(agent.Embedding) == 0 {
			return fmt.Errorf("no embedding stored and no provider configured")
		}
		return nil
	}

	embedding, err := c.embedder.Embed(ctx, agent.Description)
	if err != nil {
		return err
	}
	agent.Embedding = embedding
	if err := c.store.UpdateEmbedding(agent.Name, embedding, currentHash); err != nil {
		return err
	}
	return nil
}

func embeddingDimension(agents []*Agent) int {
	for _, agent := range agents {
		if len(agent.Embedding) > 0 {
			return len(agent.Embedding)
		}
	}
	return 0
}
