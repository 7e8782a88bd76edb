package decisionlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zen-systems/intentgate/pkg/router"
)

// Store is the append-only decision log.
//
// Rows are never updated or deleted except for the single later write of the
// correct flag via AttachFeedback. The log is read by offline tooling only;
// nothing on the routing path queries it.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if necessary creates) the decision log at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize decision log: %w", err)
	}
	return store, nil
}

// NewStoreWithDB wraps an existing database handle. The caller keeps
// ownership of the handle.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize decision log: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS routing_decisions (
			id TEXT PRIMARY KEY,
			chat_context_id TEXT,
			user_message TEXT NOT NULL,
			tier_used INTEGER NOT NULL,
			selected_agent TEXT,
			confidence REAL NOT NULL,
			bm25_scores TEXT,
			embedding_scores TEXT,
			latency_ms INTEGER NOT NULL,
			correct INTEGER,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_created ON routing_decisions(created_at);
		CREATE INDEX IF NOT EXISTS idx_decisions_agent ON routing_decisions(selected_agent);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends one decision row.
func (s *Store) Insert(d *router.Decision) error {
	bm25, err := marshalScores(d.BM25Scores)
	if err != nil {
		return err
	}
	embed, err := marshalScores(d.EmbedScores)
	if err != nil {
		return err
	}

	var selected sql.NullString
	if d.SelectedAgent != "" {
		selected = sql.NullString{String: d.SelectedAgent, Valid: true}
	}
	var contextID sql.NullString
	if d.ChatContextID != "" {
		contextID = sql.NullString{String: d.ChatContextID, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO routing_decisions (id, chat_context_id, user_message, tier_used, selected_agent, confidence, bm25_scores, embedding_scores, latency_ms, correct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, d.ID, contextID, d.UserMessage, d.TierUsed, selected, d.Confidence,
		bm25, embed, d.LatencyMs, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision %s: %w", d.ID, err)
	}
	return nil
}

// AttachFeedback sets the correct flag on a decision. The write is
// idempotent; repeating it with the same value is a no-op.
func (s *Store) AttachFeedback(decisionID string, correct bool) error {
	res, err := s.db.Exec(`UPDATE routing_decisions SET correct = ? WHERE id = ?`,
		boolToInt(correct), decisionID)
	if err != nil {
		return fmt.Errorf("failed to attach feedback to %s: %w", decisionID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("decision %s not found", decisionID)
	}
	return nil
}

// List returns the most recent decisions, newest first.
func (s *Store) List(limit int) ([]*router.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, chat_context_id, user_message, tier_used, selected_agent, confidence, bm25_scores, embedding_scores, latency_ms, correct, created_at
		FROM routing_decisions ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*router.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// Export writes every decision as JSON lines, oldest first, for external
// analytics tooling.
func (s *Store) Export(w io.Writer) error {
	rows, err := s.db.Query(`
		SELECT id, chat_context_id, user_message, tier_used, selected_agent, confidence, bm25_scores, embedding_scores, latency_ms, correct, created_at
		FROM routing_decisions ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return err
		}
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stats summarizes accuracy per tier from the rows that have feedback.
func (s *Store) Stats() (*LogStats, error) {
	stats := &LogStats{ByTier: make(map[int]*TierStats)}

	rows, err := s.db.Query(`
		SELECT tier_used, COUNT(*), COALESCE(SUM(CASE WHEN correct = 1 THEN 1 ELSE 0 END), 0), COALESCE(SUM(CASE WHEN correct IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM routing_decisions GROUP BY tier_used
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier, total, correct, withFeedback int
		if err := rows.Scan(&tier, &total, &correct, &withFeedback); err != nil {
			return nil, err
		}
		stats.Total += total
		stats.ByTier[tier] = &TierStats{
			Decisions:    total,
			WithFeedback: withFeedback,
			Correct:      correct,
		}
	}
	return stats, rows.Err()
}

// LogStats summarizes the decision log.
type LogStats struct {
	Total  int                `json:"total"`
	ByTier map[int]*TierStats `json:"by_tier"`
}

// TierStats counts decisions attributed to one tier.
type TierStats struct {
	Decisions    int `json:"decisions"`
	WithFeedback int `json:"with_feedback"`
	Correct      int `json:"correct"`
}

func scanDecision(rows *sql.Rows) (*router.Decision, error) {
	var d router.Decision
	var contextID, selected sql.NullString
	var bm25, embed sql.NullString
	var correct sql.NullInt64
	var created time.Time

	err := rows.Scan(&d.ID, &contextID, &d.UserMessage, &d.TierUsed, &selected,
		&d.Confidence, &bm25, &embed, &d.LatencyMs, &correct, &created)
	if err != nil {
		return nil, err
	}

	d.ChatContextID = contextID.String
	d.SelectedAgent = selected.String
	d.CreatedAt = created
	if correct.Valid {
		v := correct.Int64 != 0
		d.Correct = &v
	}
	if d.BM25Scores, err = unmarshalScores(bm25); err != nil {
		return nil, fmt.Errorf("decision %s: corrupt bm25 scores: %w", d.ID, err)
	}
	if d.EmbedScores, err = unmarshalScores(embed); err != nil {
		return nil, fmt.Errorf("decision %s: corrupt embedding scores: %w", d.ID, err)
	}
	return &d, nil
}

func marshalScores(scores map[string]float64) (sql.NullString, error) {
	if len(scores) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode scores: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalScores(raw sql.NullString) (map[string]float64, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var scores map[string]float64
	if err := json.Unmarshal([]byte(raw.String), &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
