package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Topic is a subject a user wants tracked. Description and NextUpdateTime
// stay nil until the chat phase finalizes the topic and the scheduler picks
// it up.
type Topic struct {
	ID                   string  `db:"id" json:"id"`
	UserID               string  `db:"associated_user_id" json:"associated_user_id"`
	Title                *string `db:"title" json:"title,omitempty"`
	Description          *string `db:"description" json:"description,omitempty"`
	Model                string  `db:"model" json:"model"`
	Tier                 string  `db:"tier" json:"tier"`
	DuePayment           int     `db:"due_payment" json:"due_payment"`
	UpdateFrequencyHours int     `db:"update_frequency_hours" json:"update_frequency_hours"`
	NextUpdateTime       *int64  `db:"next_update_time" json:"next_update_time,omitempty"`
	ConversationID       *string `db:"ai_conversation_id" json:"ai_conversation_id,omitempty"`
	CreatedAt            int64   `db:"created_at" json:"created_at"`
	UpdatedAt            int64   `db:"updated_at" json:"updated_at"`
}

// Update is one discovered content item. Immutable once created; BatchID
// groups every row produced by the same collection run.
type Update struct {
	ID        string  `db:"id" json:"id"`
	TopicID   string  `db:"associated_topic_id" json:"associated_topic_id"`
	BatchID   string  `db:"batch_id" json:"batch_id"`
	Title     *string `db:"title" json:"title,omitempty"`
	Author    *string `db:"author" json:"author,omitempty"`
	Summary   *string `db:"summary" json:"summary,omitempty"`
	SourceURL *string `db:"source_url" json:"source_url,omitempty"`
	Date      *int64  `db:"date" json:"date,omitempty"`
	KeyPoints *string `db:"key_points" json:"key_points,omitempty"`
	ImageLink *string `db:"image_link" json:"image_link,omitempty"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
}

// Agent is a durable handle to an externally hosted assistant configuration.
// At most one row exists per model label.
type Agent struct {
	ID          string `db:"id" json:"id"`
	AgentHandle string `db:"agent_id" json:"agent_id"`
	Model       string `db:"model" json:"model"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// User is the owner of topics; the pipeline only reads it to find the
// digest recipient.
type User struct {
	ID         string  `db:"id" json:"id"`
	Email      string  `db:"email" json:"email"`
	FirstName  string  `db:"first_name" json:"first_name"`
	LastName   *string `db:"last_name" json:"last_name,omitempty"`
	IsVerified bool    `db:"is_verified" json:"is_verified"`
	IsActive   bool    `db:"is_active" json:"is_active"`
	CreatedAt  int64   `db:"created_at" json:"created_at"`
}

// UpdateListOpts controls update listing.
type UpdateListOpts struct {
	TopicID string
	BatchID string
	Limit   int
}

// Store is the persistence interface.
type Store interface {
	CreateTopic(ctx context.Context, t *Topic) error
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListTopics(ctx context.Context) ([]Topic, error)
	ListTopicsByUser(ctx context.Context, userID string) ([]Topic, error)
	ListScheduledTopics(ctx context.Context) ([]Topic, error)
	SetTopicNextUpdate(ctx context.Context, id string, nextMs int64) error
	DeleteTopic(ctx context.Context, id string) error

	CreateUpdates(ctx context.Context, updates []Update) error
	ListUpdates(ctx context.Context, opts UpdateListOpts) ([]Update, error)

	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByModel(ctx context.Context, model string) (*Agent, error)
	UpsertAgent(ctx context.Context, a *Agent) error

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nowMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *SQLiteStore) CreateTopic(ctx context.Context, t *Topic) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = nowMs()
	}
	t.UpdatedAt = t.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (id, associated_user_id, title, description, model, tier, due_payment,
			update_frequency_hours, next_update_time, ai_conversation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Title, t.Description, t.Model, t.Tier, t.DuePayment,
		t.UpdateFrequencyHours, t.NextUpdateTime, t.ConversationID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert topic %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	err := s.db.GetContext(ctx, &t, "SELECT * FROM topics WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %s: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := s.db.SelectContext(ctx, &topics, "SELECT * FROM topics ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (s *SQLiteStore) ListTopicsByUser(ctx context.Context, userID string) ([]Topic, error) {
	var topics []Topic
	err := s.db.SelectContext(ctx, &topics,
		"SELECT * FROM topics WHERE associated_user_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("list topics for user %s: %w", userID, err)
	}
	return topics, nil
}

func (s *SQLiteStore) ListScheduledTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	err := s.db.SelectContext(ctx, &topics,
		"SELECT * FROM topics WHERE next_update_time IS NOT NULL ORDER BY next_update_time")
	if err != nil {
		return nil, fmt.Errorf("list scheduled topics: %w", err)
	}
	return topics, nil
}

func (s *SQLiteStore) SetTopicNextUpdate(ctx context.Context, id string, nextMs int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE topics SET next_update_time = ?, updated_at = ? WHERE id = ?",
		nextMs, nowMs(), id)
	if err != nil {
		return fmt.Errorf("set next update for topic %s: %w", id, err)
	}
	return nil
}

// DeleteTopic removes the topic and all of its updates in one transaction.
func (s *SQLiteStore) DeleteTopic(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete topic %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM updates WHERE associated_topic_id = ?", id); err != nil {
		return fmt.Errorf("delete updates for topic %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM topics WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete topic %s: %w", id, err)
	}
	return tx.Commit()
}

// CreateUpdates inserts all rows in one transaction; either every update
// is persisted or none are.
func (s *SQLiteStore) CreateUpdates(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create updates: %w", err)
	}
	defer tx.Rollback()

	for i := range updates {
		u := &updates[i]
		if u.CreatedAt == 0 {
			u.CreatedAt = nowMs()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO updates (id, associated_topic_id, batch_id, title, author, summary,
				source_url, date, key_points, image_link, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.TopicID, u.BatchID, u.Title, u.Author, u.Summary,
			u.SourceURL, u.Date, u.KeyPoints, u.ImageLink, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert update %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListUpdates(ctx context.Context, opts UpdateListOpts) ([]Update, error) {
	query := "SELECT * FROM updates WHERE 1=1"
	var args []any

	if opts.TopicID != "" {
		query += " AND associated_topic_id = ?"
		args = append(args, opts.TopicID)
	}
	if opts.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, opts.BatchID)
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var updates []Update
	if err := s.db.SelectContext(ctx, &updates, query, args...); err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	return updates, nil
}

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var a Agent
	err := s.db.GetContext(ctx, &a, "SELECT * FROM agents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteStore) GetAgentByModel(ctx context.Context, model string) (*Agent, error) {
	var a Agent
	err := s.db.GetContext(ctx, &a, "SELECT * FROM agents WHERE model = ?", model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent for model %s: %w", model, err)
	}
	return &a, nil
}

func (s *SQLiteStore) UpsertAgent(ctx context.Context, a *Agent) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = nowMs()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, agent_id, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_id = excluded.agent_id,
			model = excluded.model
	`, a.ID, a.AgentHandle, a.Model, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt == 0 {
		u.CreatedAt = nowMs()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, is_verified, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.IsVerified, u.IsActive, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}
