package domain

import "time"

// Blog is a published article read from the relational store. The store
// is the source of truth; this service never writes blog rows.
type Blog struct {
	ID          int64     `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Contents    string    `json:"contents"    db:"contents"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// EntryMetadata travels with every vector stored in the index and is
// what ties a match back to its blog row.
type EntryMetadata struct {
	Title  string `json:"title"`
	BlogID int64  `json:"blog_id"`
}

// VectorEntry is one (id, vector, metadata) triple destined for the
// vector index. ID is the blog id rendered as text.
type VectorEntry struct {
	ID       string        `json:"id"`
	Values   []float32     `json:"values"`
	Metadata EntryMetadata `json:"metadata"`
}

// VectorMatch is one ranked result from a similarity query.
type VectorMatch struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Metadata EntryMetadata `json:"metadata"`
}
