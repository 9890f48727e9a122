package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		disaster_types TEXT,
		sectors TEXT,
		regions TEXT,
		entities TEXT,
		word_count INTEGER NOT NULL,
		ingested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_documents_ingested ON documents(ingested_at);

	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_segments_document ON segments(document_id);

	CREATE TABLE IF NOT EXISTS generation_history (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		project_count INTEGER NOT NULL,
		grounded INTEGER NOT NULL,
		segments_used INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generation_created ON generation_history(created_at);

	CREATE TABLE IF NOT EXISTS generation_provenance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generation_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		segment_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		score REAL NOT NULL,
		FOREIGN KEY (generation_id) REFERENCES generation_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_provenance_generation ON generation_provenance(generation_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertDocument stores a document and its segments in one transaction.
// Documents are immutable; a duplicate id is an error, not an upsert.
func (c *Client) InsertDocument(doc *models.Document, segments []models.Segment) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	disasterJSON, _ := json.Marshal(doc.DisasterTypes)
	sectorsJSON, _ := json.Marshal(doc.Sectors)
	regionsJSON, _ := json.Marshal(doc.Regions)
	entitiesJSON, _ := json.Marshal(doc.Entities)

	_, err = tx.Exec(
		`INSERT INTO documents (id, filename, format, content_hash, disaster_types, sectors, regions, entities, word_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.Filename,
		doc.Format,
		doc.ContentHash,
		string(disasterJSON),
		string(sectorsJSON),
		string(regionsJSON),
		string(entitiesJSON),
		doc.WordCount,
		doc.IngestedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	for i := range segments {
		seg := &segments[i]
		_, err = tx.Exec(
			`INSERT INTO segments (id, document_id, segment_index, text, start_offset, end_offset, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			seg.ID,
			seg.DocumentID,
			seg.Index,
			seg.Text,
			seg.StartOffset,
			seg.EndOffset,
			seg.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", seg.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}

	logger.Debug("Document inserted",
		zap.String("doc_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("segments", len(segments)),
	)
	return nil
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	row := c.db.QueryRow(
		`SELECT id, filename, format, content_hash, disaster_types, sectors, regions, entities, word_count, ingested_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (c *Client) GetDocumentByHash(contentHash string) (*models.Document, error) {
	row := c.db.QueryRow(
		`SELECT id, filename, format, content_hash, disaster_types, sectors, regions, entities, word_count, ingested_at
		 FROM documents WHERE content_hash = ?`, contentHash)
	return scanDocument(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var disasterJSON, sectorsJSON, regionsJSON, entitiesJSON string
	var ingestedAt int64

	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Format,
		&doc.ContentHash,
		&disasterJSON,
		&sectorsJSON,
		&regionsJSON,
		&entitiesJSON,
		&doc.WordCount,
		&ingestedAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(disasterJSON), &doc.DisasterTypes)
	json.Unmarshal([]byte(sectorsJSON), &doc.Sectors)
	json.Unmarshal([]byte(regionsJSON), &doc.Regions)
	json.Unmarshal([]byte(entitiesJSON), &doc.Entities)
	doc.IngestedAt = time.Unix(ingestedAt, 0)

	return &doc, nil
}

func (c *Client) ListDocuments(offset, limit int) ([]models.Document, int, error) {
	var total int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	rows, err := c.db.Query(
		`SELECT id, filename, format, content_hash, disaster_types, sectors, regions, entities, word_count, ingested_at
		 FROM documents ORDER BY ingested_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, total, rows.Err()
}

// DeleteDocument removes a document; the segments FK cascades. Returns
// the ids of the removed segments so the caller can purge index entries.
func (c *Client) DeleteDocument(id string) ([]string, error) {
	segmentIDs, err := c.SegmentIDsForDocument(id)
	if err != nil {
		return nil, err
	}

	result, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	logger.Info("Document deleted",
		zap.String("doc_id", id),
		zap.Int("segments", len(segmentIDs)),
	)
	return segmentIDs, nil
}

func (c *Client) SegmentIDsForDocument(documentID string) ([]string, error) {
	rows, err := c.db.Query(`SELECT id FROM segments WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan segment id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (c *Client) GetSegment(id string) (*models.Segment, error) {
	var seg models.Segment
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT id, document_id, segment_index, text, start_offset, end_offset, created_at
		 FROM segments WHERE id = ?`, id).Scan(
		&seg.ID,
		&seg.DocumentID,
		&seg.Index,
		&seg.Text,
		&seg.StartOffset,
		&seg.EndOffset,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}

	seg.CreatedAt = time.Unix(createdAt, 0)
	return &seg, nil
}

func (c *Client) CountDocuments() (int, error) {
	var total int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&total)
	return total, err
}

func (c *Client) CountSegments() (int, error) {
	var total int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM segments`).Scan(&total)
	return total, err
}

func (c *Client) InsertGenerationRecord(record *models.GenerationRecord, provenance []models.ProvenanceRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	grounded := 0
	if record.Grounded {
		grounded = 1
	}

	_, err = tx.Exec(
		`INSERT INTO generation_history (id, query_text, project_count, grounded, segments_used, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Query,
		record.ProjectCount,
		grounded,
		record.SegmentsUsed,
		record.LatencyMS,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}

	for _, p := range provenance {
		_, err = tx.Exec(
			`INSERT INTO generation_provenance (generation_id, project_id, segment_id, document_id, score)
			 VALUES (?, ?, ?, ?, ?)`,
			record.ID, p.ProjectID, p.SegmentID, p.DocumentID, p.Score,
		)
		if err != nil {
			return fmt.Errorf("failed to insert provenance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation record: %w", err)
	}

	logger.Info("Generation recorded",
		zap.String("generation_id", record.ID),
		zap.Int("projects", record.ProjectCount),
		zap.Bool("grounded", record.Grounded),
	)
	return nil
}

func (c *Client) GetGenerationHistory(limit int) ([]models.GenerationRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, query_text, project_count, grounded, segments_used, latency_ms, created_at
		 FROM generation_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation history: %w", err)
	}
	defer rows.Close()

	var records []models.GenerationRecord
	for rows.Next() {
		var r models.GenerationRecord
		var grounded int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Query, &r.ProjectCount, &grounded, &r.SegmentsUsed, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Grounded = grounded == 1
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) CountGenerations() (int, error) {
	var total int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM generation_history`).Scan(&total)
	return total, err
}
