package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/recall-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested memory doesn't exist
	ErrNotFound = errors.New("not found")
)

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	project *string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite benefits from a single writer; WAL lets other processes read.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// Open opens (creating if needed) the store at dbPath. project is the
// canonical key stamped on every returned memory; nil means global.
func Open(dbPath string, project *string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	var p *string
	if project != nil {
		k := *project
		p = &k
	}
	return &SQLiteStore{db: db, path: dbPath, project: p}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Project() *string {
	if s.project == nil {
		return nil
	}
	k := *s.project
	return &k
}

func (s *SQLiteStore) Path() string { return s.path }

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const memoryColumns = "m.id, m.content, m.memory_type, m.tags, m.metadata, m.created_at, m.updated_at"

// Add writes a new memory and its tags.
func (s *SQLiteStore) Add(ctx context.Context, nm NewMemory) (*types.Memory, error) {
	if err := types.ValidateContent(nm.Content); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &types.Memory{
		ID:        ulid.Make().String(),
		Content:   nm.Content,
		Type:      nm.Type,
		Tags:      types.NormalizeTags(nm.Tags),
		Metadata:  nm.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
		Project:   s.Project(),
	}
	if m.Type == "" {
		m.Type = types.DefaultMemoryType
	}

	tagsJSON, metaJSON, err := encodeMemoryJSON(m)
	if err != nil {
		return nil, err
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memories (id, content, memory_type, tags, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Content, m.Type, tagsJSON, metaJSON, formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("failed to insert memory: %w", err)
		}
		return replaceTags(ctx, tx, m.ID, m.Tags)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns one memory by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Memory, error) {
	return s.getWithQuerier(ctx, s.db, id)
}

func (s *SQLiteStore) getWithQuerier(ctx context.Context, q querier, id string) (*types.Memory, error) {
	row := q.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories m WHERE m.id = ?", id)
	m, err := s.scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return m, nil
}

// Update applies the non-nil fields of u and refreshes updated_at. A content
// change removes the stale vector so the memory is embedded again.
func (s *SQLiteStore) Update(ctx context.Context, id string, u MemoryUpdate) (*types.Memory, error) {
	if u.Content != nil {
		if err := types.ValidateContent(*u.Content); err != nil {
			return nil, err
		}
	}

	var updated *types.Memory
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		m, err := s.getWithQuerier(ctx, tx, id)
		if err != nil {
			return err
		}

		contentChanged := u.Content != nil && *u.Content != m.Content
		if u.Content != nil {
			m.Content = *u.Content
		}
		if u.Type != nil && *u.Type != "" {
			m.Type = *u.Type
		}
		if u.Tags != nil {
			m.Tags = types.NormalizeTags(u.Tags)
		}
		if u.Metadata != nil {
			m.Metadata = u.Metadata
		}
		m.UpdatedAt = time.Now().UTC()

		tagsJSON, metaJSON, err := encodeMemoryJSON(m)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE memories SET content = ?, memory_type = ?, tags = ?, metadata = ?, updated_at = ?
			WHERE id = ?`,
			m.Content, m.Type, tagsJSON, metaJSON, formatTime(m.UpdatedAt), id); err != nil {
			return fmt.Errorf("failed to update memory: %w", err)
		}
		if u.Tags != nil {
			if err := replaceTags(ctx, tx, id, m.Tags); err != nil {
				return err
			}
		}
		if contentChanged {
			if _, err := tx.ExecContext(ctx, "DELETE FROM memory_embeddings WHERE memory_id = ?", id); err != nil {
				return fmt.Errorf("failed to drop stale embedding: %w", err)
			}
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a memory together with its tags and vector.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return runInTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memory_embeddings WHERE memory_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM memory_tags WHERE memory_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List returns memories newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories m WHERE 1=1"
	var args []interface{}
	query, args = applyTypeFilter(query, args, opts.MemoryTypes)
	query += " ORDER BY m.created_at DESC, m.seq DESC"
	query, args = applyPaging(query, args, opts.Limit, opts.Offset)

	return s.queryMemories(ctx, query, args...)
}

// StoreEmbedding upserts the vector of one memory.
func (s *SQLiteStore) StoreEmbedding(ctx context.Context, memoryID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding for memory %s", memoryID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, vector, dimensions, created_at)
		SELECT id, ?, ?, ? FROM memories WHERE id = ?
		ON CONFLICT(memory_id) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at`,
		serializeVector(vector), len(vector), formatTime(time.Now().UTC()), memoryID)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	// The INSERT ... SELECT writes nothing when the memory is gone.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_embeddings WHERE memory_id = ?", memoryID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) EmbeddingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// MemoriesWithoutEmbeddings returns memories with no vector, oldest first.
func (s *SQLiteStore) MemoriesWithoutEmbeddings(ctx context.Context, limit int) ([]types.Memory, error) {
	query := "SELECT " + memoryColumns + ` FROM memories m
		LEFT JOIN memory_embeddings e ON e.memory_id = m.id
		WHERE e.memory_id IS NULL
		ORDER BY m.seq`
	var args []interface{}
	query, args = applyPaging(query, args, limit, 0)
	return s.queryMemories(ctx, query, args...)
}

// Stats counts memories, vectors and distinct tags.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Project: s.Project()}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM memories),
			(SELECT COUNT(*) FROM memory_embeddings),
			(SELECT COUNT(DISTINCT tag) FROM memory_tags)`).
		Scan(&st.Memories, &st.Embeddings, &st.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return st, nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanMemory(row rowScanner, extra ...interface{}) (*types.Memory, error) {
	var (
		m                     types.Memory
		tagsJSON, metaJSON    string
		createdRaw, updateRaw string
	)
	dest := append([]interface{}{&m.ID, &m.Content, &m.Type, &tagsJSON, &metaJSON, &createdRaw, &updateRaw}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil || m.Tags == nil {
		m.Tags = []string{}
	}
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &m.Metadata)
	}
	m.CreatedAt = parseTime(createdRaw)
	m.UpdatedAt = parseTime(updateRaw)
	m.Project = s.Project()
	return &m, nil
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]types.Memory, 0)
	for rows.Next() {
		m, err := s.scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func replaceTags(ctx context.Context, tx *sql.Tx, memoryID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_tags WHERE memory_id = ?", memoryID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)", memoryID, tag); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func encodeMemoryJSON(m *types.Memory) (string, string, error) {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode tags: %w", err)
	}
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(tagsJSON), string(metaJSON), nil
}

// applyTypeFilter adds an IN clause for memory types
func applyTypeFilter(query string, args []interface{}, memoryTypes []string) (string, []interface{}) {
	if len(memoryTypes) == 0 {
		return query, args
	}
	query += " AND m.memory_type IN (" + placeholders(len(memoryTypes)) + ")"
	for _, t := range memoryTypes {
		args = append(args, t)
	}
	return query, args
}

// applyDateFilters bounds created_at on either side
func applyDateFilters(query string, args []interface{}, after, before *time.Time) (string, []interface{}) {
	if after != nil {
		query += " AND m.created_at >= ?"
		args = append(args, formatTime(*after))
	}
	if before != nil {
		query += " AND m.created_at <= ?"
		args = append(args, formatTime(*before))
	}
	return query, args
}

func applyPaging(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime returns the zero time for values it cannot parse.
func parseTime(raw string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
