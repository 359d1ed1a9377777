package kb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord archives one completed agent run: the question, the final
// answer, and the full step transcript as JSON. Archiving happens after
// the run resolves; the engine itself never reads these back.
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Question       string    `json:"question"`
	Response       string    `json:"response"`
	StepsJSON      string    `json:"steps_json"`
	DurationMs     int64     `json:"duration_ms"`
	Outcome        string    `json:"outcome"` // ok, cancelled, exhausted, failed
	CreatedAt      time.Time `json:"created_at"`
}

// ArchiveRun persists a completed run transcript.
func (s *Store) ArchiveRun(ctx context.Context, r RunRecord) error {
	if r.ID == uuid.Nil {
		r.ID, _ = uuid.NewV7()
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, conversation_id, question, response, steps_json, duration_ms, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), r.ConversationID, r.Question, r.Response, r.StepsJSON,
		r.DurationMs, r.Outcome, created.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest archived runs for a conversation.
func (s *Store) RecentRuns(ctx context.Context, conversationID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, question, response, steps_json, duration_ms, outcome, created_at
		FROM runs WHERE conversation_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var id, created string
		if err := rows.Scan(&id, &r.ConversationID, &r.Question, &r.Response,
			&r.StepsJSON, &r.DurationMs, &r.Outcome, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
