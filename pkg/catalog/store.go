package catalog

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists agent definitions in SQLite.
//
// Agents are never deleted physically. Disabling is a logical delete so that
// historical routing decisions referencing the agent by name stay resolvable.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if necessary creates) the agent store at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent store: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize agent store: %w", err)
	}
	return store, nil
}

// NewStoreWithDB wraps an existing database handle. The caller keeps
// ownership of the handle.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize agent store: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			name TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			keywords TEXT NOT NULL,
			regex_patterns TEXT NOT NULL,
			embedding BLOB,
			description_hash TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 100,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_enabled ON agents(enabled, priority);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register inserts or updates an agent definition. The agent must validate
// (including regex compilation) before it is written.
func (s *Store) Register(agent *Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	keywords, err := json.Marshal(agent.NormalizedKeywords())
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	patterns, err := json.Marshal(agent.RegexPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO agents (name, display_name, description, keywords, regex_patterns, embedding, description_hash, priority, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			keywords = excluded.keywords,
			regex_patterns = excluded.regex_patterns,
			embedding = excluded.embedding,
			description_hash = excluded.description_hash,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, agent.Name, agent.DisplayName, agent.Description, string(keywords), string(patterns),
		encodeEmbedding(agent.Embedding), agent.DescriptionHash(),
		agent.Priority, boolToInt(agent.Enabled), agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to register agent %q: %w", agent.Name, err)
	}
	return nil
}

// SetEnabled flips the enabled flag for an agent.
func (s *Store) SetEnabled(name string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE agents SET enabled = ?, updated_at = ? WHERE name = ?`,
		boolToInt(enabled), time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update agent %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("agent %q not found", name)
	}
	return nil
}

// UpdateEmbedding persists a freshly computed embedding alongside the hash of
// the description it was computed from.
func (s *Store) UpdateEmbedding(name string, embedding []float32, descriptionHash string) error {
	_, err := s.db.Exec(`UPDATE agents SET embedding = ?, description_hash = ?, updated_at = ? WHERE name = ?`,
		encodeEmbedding(embedding), descriptionHash, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %q: %w", name, err)
	}
	return nil
}

// Get returns a single agent by name, enabled or not.
func (s *Store) Get(name string) (*Agent, error) {
	row := s.db.QueryRow(`
		SELECT name, display_name, description, keywords, regex_patterns, embedding, description_hash, priority, enabled, created_at, updated_at
		FROM agents WHERE name = ?
	`, name)
	agent, _, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %q not found", name)
	}
	return agent, err
}

// ListEnabled returns all enabled agents ordered by priority ascending, then
// name for a stable order.
func (s *Store) ListEnabled() ([]*Agent, []string, error) {
	return s.list(`WHERE enabled = 1`)
}

// ListAll returns every agent, enabled or not, ordered by priority.
func (s *Store) ListAll() ([]*Agent, []string, error) {
	return s.list(``)
}

// list returns agents plus the description hash each stored embedding was
// computed from, so callers can detect stale embeddings.
func (s *Store) list(where string) ([]*Agent, []string, error) {
	rows, err := s.db.Query(`
		SELECT name, display_name, description, keywords, regex_patterns, embedding, description_hash, priority, enabled, created_at, updated_at
		FROM agents ` + where + ` ORDER BY priority ASC, name ASC
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	var hashes []string
	for rows.Next() {
		agent, hash, err := scanAgent(rows)
		if err != nil {
			return nil, nil, err
		}
		agents = append(agents, agent)
		hashes = append(hashes, hash)
	}
	return agents, hashes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, string, error) {
	var agent Agent
	var keywords, patterns, hash string
	var embedding []byte
	var enabled int

	err := row.Scan(&agent.Name, &agent.DisplayName, &agent.Description, &keywords, &patterns,
		&embedding, &hash, &agent.Priority, &enabled, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	if err := json.Unmarshal([]byte(keywords), &agent.Keywords); err != nil {
		return nil, "", fmt.Errorf("agent %q: corrupt keywords: %w", agent.Name, err)
	}
	if err := json.Unmarshal([]byte(patterns), &agent.RegexPatterns); err != nil {
		return nil, "", fmt.Errorf("agent %q: corrupt patterns: %w", agent.Name, err)
	}
	agent.Embedding = decodeEmbedding(embedding)
	agent.Enabled = enabled != 0
	return &agent, hash, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeEmbedding converts a float32 slice to little-endian bytes.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts bytes back to a float32 slice.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding
}
