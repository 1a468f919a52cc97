package store

import (
	"encoding/json"
	"time"
)

// Design is one persisted card design: the full document plus the
// metadata the gallery and delete paths need.
type Design struct {
	ID          string
	Name        string
	Document    json.RawMessage
	EditKeyHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DesignSummary is the gallery listing row; the document itself stays out
// of list responses.
type DesignSummary struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
