package models

import (
	"time"

	"github.com/resilience2relief/backend/internal/taxonomy"
)

// Document is an immutable ingested source document. It is created once
// during ingestion and only ever removed, never mutated.
type Document struct {
	ID            string
	Filename      string
	Format        string
	ContentHash   string
	DisasterTypes []taxonomy.DisasterType
	Sectors       []taxonomy.Sector
	Regions       []taxonomy.Region
	Entities      Entities
	WordCount     int
	IngestedAt    time.Time
}

// Entities holds free-text entities captured during ingestion.
type Entities struct {
	Organizations []string `json:"organizations,omitempty"`
	Amounts       []string `json:"amounts,omitempty"`
	Dates         []string `json:"dates,omitempty"`
}

// Segment is a contiguous cleaned span of a document's text, the unit of
// retrieval. Segments are owned by their parent document and deleted with it.
type Segment struct {
	ID          string
	DocumentID  string
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
	CreatedAt   time.Time
}

// GenerationRecord is one processed generate request, persisted for the
// history endpoint and stats.
type GenerationRecord struct {
	ID           string
	Query        string
	ProjectCount int
	Grounded     bool
	SegmentsUsed int
	LatencyMS    int
	CreatedAt    time.Time
}

// ProvenanceRecord links a generated project to one retrieved segment that
// justified it.
type ProvenanceRecord struct {
	ID           int
	GenerationID string
	ProjectID    string
	SegmentID    string
	DocumentID   string
	Score        float64
}
