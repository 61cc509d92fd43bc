package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned when no memory matches the id (and owner, when
// one is given).
var ErrNotFound = errors.New("memory not found")

// Stored times use a fixed-width layout so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `
	SELECT id, user_id, source, source_id, timestamp, content, metadata, created_at, updated_at
	FROM memories
`

// Store handles memory persistence
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new memory store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create stores a new memory. The id is assigned by the database.
func (s *Store) Create(ctx context.Context, req *CreateRequest) (*Record, error) {
	now := s.now().UTC()
	rec := &Record{
		UserID:    *req.UserID,
		Source:    *req.Source,
		SourceID:  *req.SourceID,
		Timestamp: req.Timestamp.Time.UTC(),
		Content:   *req.Content,
		Metadata: Metadata{
			Title:    deref(req.Metadata.Title),
			Origin:   deref(req.Metadata.Origin),
			Tags:     deref(req.Metadata.Tags),
			Category: derefAll(req.Metadata.Category),
			Others:   deref(req.Metadata.Others),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (user_id, source, source_id, timestamp, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.Source, rec.SourceID, formatTime(rec.Timestamp), rec.Content, string(metadata),
		formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory id: %w", err)
	}
	return rec, nil
}

// Get retrieves a memory by ID. When userID is set the memory must belong
// to that user.
func (s *Store) Get(ctx context.Context, id int64, userID *int64) (*Record, error) {
	return getRecord(ctx, s.db, id, userID)
}

// Update applies a partial update. Only fields present in the request are
// changed; metadata fields are merged one by one. UserID, when given, scopes
// the update to that owner and is not reassigned.
func (s *Store) Update(ctx context.Context, req *UpdateRequest) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := getRecord(ctx, tx, *req.ID, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.Source != nil {
		rec.Source = *req.Source
	}
	if req.SourceID != nil {
		rec.SourceID = *req.SourceID
	}
	if req.Timestamp != nil {
		rec.Timestamp = req.Timestamp.Time.UTC()
	}
	if req.Content != nil {
		rec.Content = *req.Content
	}
	rec.Metadata.apply(req.Metadata)
	rec.UpdatedAt = s.now().UTC()

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories
		SET source = ?, source_id = ?, timestamp = ?, content = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, rec.Source, rec.SourceID, formatTime(rec.Timestamp), rec.Content, string(metadata),
		formatTime(rec.UpdatedAt), rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return rec, nil
}

// Delete removes a memory owned by userID
func (s *Store) Delete(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's memories, newest timestamp first. User ids
// arrive as strings; one that is not an integer matches nothing.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	memories := []*Record{}

	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return memories, nil
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	return memories, nil
}

func getRecord(ctx context.Context, q rowQuerier, id int64, userID *int64) (*Record, error) {
	query := selectColumns + " WHERE id = ?"
	args := []any{id}
	if userID != nil {
		query += " AND user_id = ?"
		args = append(args, *userID)
	}

	m, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		m                               Record
		timestamp, createdAt, updatedAt string
		metadata                        string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.Source, &m.SourceID, &timestamp, &m.Content, &metadata, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}

	if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of memory %d: %w", m.ID, err)
	}
	if m.Metadata.Category == nil {
		m.Metadata.Category = []string{}
	}

	var err error
	if m.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
