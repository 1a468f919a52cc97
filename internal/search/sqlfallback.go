package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// SQLFallback implements Fallback with a plain ILIKE query against the
// designs table. It is the search path when Meilisearch is down or not
// configured.
type SQLFallback struct {
	db *sql.DB
}

// NewSQLFallback creates the SQL name search.
func NewSQLFallback(db *sql.DB) *SQLFallback {
	return &SQLFallback{db: db}
}

// SearchByName matches design names case-insensitively.
func (f *SQLFallback) SearchByName(ctx context.Context, term string, limit int) ([]Result, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	rows, err := f.db.QueryContext(ctx, `
		SELECT id, name
		FROM designs
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("sql search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("sql search scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LoadAllRecords returns every stored design for full reindexing.
func (f *SQLFallback) LoadAllRecords(ctx context.Context) ([]DesignRecord, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT id, name, document, extract(epoch FROM updated_at)::bigint
		FROM designs`)
	if err != nil {
		return nil, fmt.Errorf("load designs: %w", err)
	}
	defer rows.Close()

	records := make([]DesignRecord, 0)
	for rows.Next() {
		var record DesignRecord
		var document json.RawMessage
		if err := rows.Scan(&record.ID, &record.Name, &document, &record.Updated); err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		var doc struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.Unmarshal(document, &doc); err == nil {
			record.Holder = stringField(doc.Fields, "name")
			record.Company = stringField(doc.Fields, "company")
			record.Tagline = stringField(doc.Fields, "tagline")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func stringField(fields map[string]any, key string) string {
	value, _ := fields[key].(string)
	return value
}
