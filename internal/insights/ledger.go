// Package insights records user feedback and turns repeated corrections into
// durable learning.
package insights

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Feedback is one piece of user feedback on an assistant response.
type Feedback struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	MessageID         string    `json:"message_id"`
	Type              string    `json:"feedback_type"` // rating, correction or clarification
	Rating            int       `json:"rating,omitempty"`
	Correction        string    `json:"correction,omitempty"`
	UserMessage       string    `json:"user_message,omitempty"`
	AssistantResponse string    `json:"assistant_response,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Insight is a correction pattern aggregated across feedback records.
type Insight struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Pattern    string    `json:"pattern"`
	Correction string    `json:"correction"`
	Frequency  int       `json:"frequency"`
	LastSeen   time.Time `json:"last_seen"`
	Applied    bool      `json:"applied_to_memory"`
}

// Summary aggregates a user's feedback activity.
type Summary struct {
	TotalFeedback   int `json:"total_feedback"`
	PositiveRatings int `json:"positive_ratings"`
	NegativeRatings int `json:"negative_ratings"`
	Corrections     int `json:"corrections"`
	Insights        int `json:"learning_insights"`
}

// MemoryWriter receives facts promoted from recurring corrections.
type MemoryWriter interface {
	AddFact(ctx context.Context, userID, fact string) error
}

// Ledger stores feedback and learning insights. It shares the session store's
// database handle.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates the feedback tables if needed.
func NewLedger(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate feedback schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			feedback_type TEXT NOT NULL,
			rating INTEGER,
			correction TEXT,
			user_message TEXT,
			assistant_response TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learning_insights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			insight_type TEXT NOT NULL,
			pattern TEXT,
			correction TEXT,
			frequency INTEGER DEFAULT 1,
			last_seen TEXT NOT NULL,
			applied_to_memory INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_user ON learning_insights(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddFeedback records one feedback item. Corrections additionally feed the
// learning insight table.
func (l *Ledger) AddFeedback(ctx context.Context, f Feedback) (int64, error) {
	if f.Type != "rating" && f.Type != "correction" && f.Type != "clarification" {
		return 0, fmt.Errorf("unknown feedback type %q", f.Type)
	}
	if f.Type == "rating" && f.Rating != 1 && f.Rating != -1 {
		return 0, fmt.Errorf("rating must be 1 or -1, got %d", f.Rating)
	}

	now := time.Now()
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, message_id, feedback_type, rating, correction,
			user_message, assistant_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.UserID, f.MessageID, f.Type, f.Rating, f.Correction,
		f.UserMessage, f.AssistantResponse, now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("feedback id: %w", err)
	}

	if f.Type == "correction" && f.Correction != "" {
		if err := l.recordCorrection(ctx, f.UserID, f.UserMessage, f.Correction, now); err != nil {
			return id, fmt.Errorf("record correction: %w", err)
		}
	}
	return id, nil
}

// recordCorrection bumps the frequency of a matching pattern or creates a new
// one. Patterns match on the first 50 characters of the triggering message.
func (l *Ledger) recordCorrection(ctx context.Context, userID, userMessage, correction string, now time.Time) error {
	prefix := userMessage
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}

	var id int64
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM learning_insights
		 WHERE user_id = ? AND insight_type = 'correction' AND pattern LIKE ?`,
		userID, "%"+prefix+"%").Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		_, err = l.db.ExecContext(ctx,
			`INSERT INTO learning_insights (user_id, insight_type, pattern, correction, last_seen)
			 VALUES (?, 'correction', ?, ?, ?)`,
			userID, userMessage, correction, now.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert insight: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find insight: %w", err)
	default:
		_, err = l.db.ExecContext(ctx,
			`UPDATE learning_insights
			 SET frequency = frequency + 1, last_seen = ?, correction = ?
			 WHERE id = ?`,
			now.Format(time.RFC3339Nano), correction, id)
		if err != nil {
			return fmt.Errorf("update insight: %w", err)
		}
	}
	return nil
}

// Insights returns correction patterns seen at least minFrequency times,
// most frequent first.
func (l *Ledger) Insights(ctx context.Context, userID string, minFrequency int) ([]Insight, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, pattern, correction, frequency, last_seen, applied_to_memory
		 FROM learning_insights
		 WHERE user_id = ? AND frequency >= ?
		 ORDER BY frequency DESC, last_seen DESC`,
		userID, minFrequency)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var in Insight
		var lastSeen string
		var applied int
		if err := rows.Scan(&in.ID, &in.UserID, &in.Pattern, &in.Correction,
			&in.Frequency, &lastSeen, &applied); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
		in.Applied = applied != 0
		out = append(out, in)
	}
	return out, rows.Err()
}

// Promote writes recurring corrections into user memory as facts. Each
// insight is promoted at most once; calling Promote again is a no-op for
// already-applied insights. Returns the number promoted.
func (l *Ledger) Promote(ctx context.Context, userID string, minFrequency int, mem MemoryWriter) (int, error) {
	if minFrequency < 2 {
		minFrequency = 2
	}

	insights, err := l.Insights(ctx, userID, minFrequency)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, in := range insights {
		if in.Applied {
			continue
		}

		fact := fmt.Sprintf("correction_learned: %s -> %s",
			truncate(in.Pattern, 100), truncate(in.Correction, 100))
		if err := mem.AddFact(ctx, userID, fact); err != nil {
			return promoted, fmt.Errorf("write fact: %w", err)
		}

		if _, err := l.db.ExecContext(ctx,
			`UPDATE learning_insights SET applied_to_memory = 1 WHERE id = ?`, in.ID); err != nil {
			return promoted, fmt.Errorf("mark applied: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Context renders the top corrections as a prompt block, or an empty string
// when the user has none.
func (l *Ledger) Context(ctx context.Context, userID string) (string, error) {
	insights, err := l.Insights(ctx, userID, 1)
	if err != nil {
		return "", err
	}
	if len(insights) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("USER FEEDBACK & CORRECTIONS:\n\n")
	for i, in := range insights {
		if i == 5 {
			break
		}
		fmt.Fprintf(&sb, "[Correction #%d] Pattern: %s\n", i+1, truncate(in.Pattern, 80))
		fmt.Fprintf(&sb, "Correct response should be: %s\n", truncate(in.Correction, 100))
		fmt.Fprintf(&sb, "(Seen %d times)\n\n", in.Frequency)
	}
	sb.WriteString("Learn from these corrections and avoid repeating mistakes.\n")
	return sb.String(), nil
}

// Summary aggregates feedback counts for a user.
func (l *Ledger) Summary(ctx context.Context, userID string) (Summary, error) {
	var s Summary

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(CASE WHEN feedback_type = 'rating' AND rating = 1 THEN 1 END),
			COUNT(CASE WHEN feedback_type = 'rating' AND rating = -1 THEN 1 END),
			COUNT(CASE WHEN feedback_type = 'correction' THEN 1 END)
		 FROM feedback WHERE user_id = ?`, userID).
		Scan(&s.TotalFeedback, &s.PositiveRatings, &s.NegativeRatings, &s.Corrections)
	if err != nil {
		return Summary{}, fmt.Errorf("feedback counts: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learning_insights WHERE user_id = ?`, userID).Scan(&s.Insights)
	if err != nil {
		return Summary{}, fmt.Errorf("insight count: %w", err)
	}
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
