package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"itassist/internal/index"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Repo reads and writes index snapshots through plain SQL.
type Repo struct {
	db      *sql.DB
	dialect Dialect
}

func NewRepo(db *sql.DB, dialect Dialect) *Repo {
	return &Repo{db: db, dialect: dialect}
}

// bind rewrites ? placeholders into the dialect's form.
func (r *Repo) bind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Save replaces the stored snapshot in a single transaction.
func (r *Repo) Save(ctx context.Context, snap index.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_manifest"); err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}

	m := snap.Manifest
	_, err = tx.ExecContext(ctx, r.bind("INSERT INTO index_manifest (id, model, dimension, chunk_size, chunk_overlap, chunk_count, created_at) VALUES (1, ?, ?, ?, ?, ?, ?)"),
		m.Model, m.Dimension, m.ChunkSize, m.ChunkOverlap, len(snap.Chunks), m.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}

	insert := r.bind("INSERT INTO index_chunks (position, chunk_id, document_id, chunk_offset, content, metadata, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)")
	for i, c := range snap.Chunks {
		meta, err := json.Marshal(nonNil(c.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, i, c.ID, c.DocumentID, c.Offset, c.Text, string(meta), EncodeVector(c.Vector)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot in insertion order.
func (r *Repo) Load(ctx context.Context) (*index.Snapshot, error) {
	var (
		m         index.Manifest
		createdAt string
	)
	row := r.db.QueryRowContext(ctx, "SELECT model, dimension, chunk_size, chunk_overlap, chunk_count, created_at FROM index_manifest WHERE id = 1")
	if err := row.Scan(&m.Model, &m.Dimension, &m.ChunkSize, &m.ChunkOverlap, &m.ChunkCount, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, index.ErrIndexNotFound
		}
		return nil, &index.CorruptError{Reason: "read manifest", Err: err}
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, &index.CorruptError{Reason: "manifest created_at", Err: err}
	}
	m.CreatedAt = ts

	rows, err := r.db.QueryContext(ctx, "SELECT chunk_id, document_id, chunk_offset, content, metadata, embedding FROM index_chunks ORDER BY position")
	if err != nil {
		return nil, &index.CorruptError{Reason: "read chunks", Err: err}
	}
	defer rows.Close()

	chunks := make([]index.Chunk, 0, m.ChunkCount)
	for rows.Next() {
		var (
			c    index.Chunk
			meta []byte
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Offset, &c.Text, &meta, &blob); err != nil {
			return nil, &index.CorruptError{Reason: "scan chunk", Err: err}
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, &index.CorruptError{Reason: "metadata of " + c.ID, Err: err}
		}
		if len(c.Metadata) == 0 {
			c.Metadata = nil
		}
		if c.Vector, err = DecodeVector(blob); err != nil {
			return nil, &index.CorruptError{Reason: "embedding of " + c.ID, Err: err}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &index.CorruptError{Reason: "iterate chunks", Err: err}
	}

	return &index.Snapshot{Manifest: m, Chunks: chunks}, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// CountChunks returns the number of persisted chunks.
func (r *Repo) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
