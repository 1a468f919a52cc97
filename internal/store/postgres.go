package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// CreateDesign inserts a new design row.
func (s *PostgresStore) CreateDesign(ctx context.Context, design Design) (Design, error) {
	const query = `
		INSERT INTO designs (id, name, document, edit_key_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, design.ID, design.Name, []byte(design.Document), design.EditKeyHash).
		Scan(&design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		return Design{}, fmt.Errorf("insert design: %w", err)
	}
	return design, nil
}

// UpdateDesignDocument replaces a stored design's document and name.
// sql.ErrNoRows passes through when the design does not exist.
func (s *PostgresStore) UpdateDesignDocument(ctx context.Context, id, name string, document json.RawMessage) (Design, error) {
	const query = `
		UPDATE designs
		SET name = $2, document = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, document, edit_key_hash, created_at, updated_at
	`
	var design Design
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, id, name, []byte(document)).
		Scan(&design.ID, &design.Name, &raw, &design.EditKeyHash, &design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		return Design{}, err
	}
	design.Document = raw
	return design, nil
}

// GetDesign loads one design. sql.ErrNoRows passes through.
func (s *PostgresStore) GetDesign(ctx context.Context, id string) (Design, error) {
	const query = `
		SELECT id, name, document, edit_key_hash, created_at, updated_at
		FROM designs
		WHERE id = $1
	`
	var design Design
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&design.ID, &design.Name, &raw, &design.EditKeyHash, &design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		return Design{}, err
	}
	design.Document = raw
	return design, nil
}

// ListDesigns returns gallery rows, newest first.
func (s *PostgresStore) ListDesigns(ctx context.Context, limit, offset int) ([]DesignSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
		SELECT id, name, created_at, updated_at
		FROM designs
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	summaries := []DesignSummary{}
	for rows.Next() {
		var summary DesignSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan design row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// SearchDesignsByName is the SQL search path used when the search index is
// unavailable.
func (s *PostgresStore) SearchDesignsByName(ctx context.Context, term string, limit int) ([]DesignSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
		SELECT id, name, created_at, updated_at
		FROM designs
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search designs: %w", err)
	}
	defer rows.Close()

	summaries := []DesignSummary{}
	for rows.Next() {
		var summary DesignSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan design row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// DeleteDesign removes a design. sql.ErrNoRows passes through when
// nothing matched.
func (s *PostgresStore) DeleteDesign(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM designs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
