package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/embedding"
	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/internal/storage/sqlite"
	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/utils"
)

var pageNumberRe = regexp.MustCompile(`(?i)^(?:page\s+)?\d{1,4}(?:\s+of\s+\d{1,4})?$`)

// Processor runs the full ingestion pipeline: extract, clean, segment,
// classify, persist, embed, index.
// GraphRecorder receives ingested documents for entity graph maintenance.
// Optional collaborator; failures inside it must not fail ingestion.
type GraphRecorder interface {
	BuildFromDocument(ctx context.Context, doc *models.Document)
	RemoveDocument(ctx context.Context, documentID string)
}

// ResponseInvalidator drops cached generate responses. Ingest and Delete
// change what retrieval can return, so cached responses go stale.
type ResponseInvalidator interface {
	InvalidateResponses(ctx context.Context) error
}

type Processor struct {
	db          *sqlite.Client
	index       vector.Index
	embedder    embedding.Embedder
	segmenter   *Segmenter
	graph       GraphRecorder
	cache       ResponseInvalidator
	maxFileSize int
}

func NewProcessor(db *sqlite.Client, index vector.Index, embedder embedding.Embedder, segmentSize, segmentOverlap, maxFileSize int) *Processor {
	return &Processor{
		db:          db,
		index:       index,
		embedder:    embedder,
		segmenter:   NewSegmenter(segmentSize, segmentOverlap),
		maxFileSize: maxFileSize,
	}
}

// WithGraph attaches an entity graph recorder.
func (p *Processor) WithGraph(graph GraphRecorder) *Processor {
	p.graph = graph
	return p
}

// WithCache attaches a response cache to invalidate on corpus mutation.
func (p *Processor) WithCache(cache ResponseInvalidator) *Processor {
	p.cache = cache
	return p
}

func (p *Processor) invalidateCache(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateResponses(ctx); err != nil {
		logger.Warn("Failed to invalidate response cache", zap.Error(err))
	}
}

// BatchResult reports the outcome for one file of a batch.
type BatchResult struct {
	Filename string           `json:"filename"`
	Document *models.Document `json:"document,omitempty"`
	Err      error            `json:"-"`
	Error    string           `json:"error,omitempty"`
}

// Ingest processes one document end to end. A document whose content hash
// already exists is returned as-is without re-processing.
func (p *Processor) Ingest(ctx context.Context, filename string, content []byte) (*models.Document, error) {
	logger.Info("Ingesting document", zap.String("filename", filename), zap.Int("bytes", len(content)))

	if p.maxFileSize > 0 && len(content) > p.maxFileSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", p.maxFileSize)
	}

	format := Format(filename)
	if format == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	text, err := ExtractText(filename, content)
	if err != nil {
		return nil, err
	}

	text = stripBoilerplate(text)
	if text == "" {
		return nil, ErrEmptyContent
	}

	contentHash := utils.HashString(text)
	if existing, err := p.db.GetDocumentByHash(contentHash); err == nil {
		logger.Info("Duplicate content, skipping",
			zap.String("filename", filename),
			zap.String("existing_doc", existing.ID),
		)
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	pieces := p.segmenter.Segment(text)
	if len(pieces) == 0 {
		return nil, ErrEmptyContent
	}

	sectors, regions, disasters, entities := ExtractMetadata(text)

	docID := uuid.New().String()
	now := time.Now().UTC()
	doc := &models.Document{
		ID:            docID,
		Filename:      utils.CleanFilename(filename),
		Format:        format,
		ContentHash:   contentHash,
		DisasterTypes: disasters,
		Sectors:       sectors,
		Regions:       regions,
		Entities:      entities,
		WordCount:     len(strings.Fields(text)),
		IngestedAt:    now,
	}

	segments := make([]models.Segment, len(pieces))
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		segments[i] = models.Segment{
			ID:          fmt.Sprintf("%s_seg_%d", docID, i),
			DocumentID:  docID,
			Index:       i,
			Text:        piece.Text,
			StartOffset: piece.StartOffset,
			EndOffset:   piece.EndOffset,
			CreatedAt:   now,
		}
		texts[i] = piece.Text
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed segments: %w", err)
	}
	if len(embeddings) != len(segments) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(segments))
	}

	if err := p.db.InsertDocument(doc, segments); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	entries := make([]vector.Entry, len(segments))
	for i, seg := range segments {
		entries[i] = vector.Entry{
			SegmentID:     seg.ID,
			DocumentID:    docID,
			Embedding:     embeddings[i],
			Sectors:       sectors,
			Regions:       regions,
			DisasterTypes: disasters,
			IngestedAt:    now,
		}
	}

	if err := p.index.Add(ctx, entries); err != nil {
		// Keep store and index consistent: a document whose segments never
		// made it into the index is unreachable, so roll it back.
		if _, delErr := p.db.DeleteDocument(docID); delErr != nil {
			logger.Warn("Failed to roll back document after index failure",
				zap.String("doc_id", docID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to index segments: %w", err)
	}

	if p.graph != nil {
		p.graph.BuildFromDocument(ctx, doc)
	}
	p.invalidateCache(ctx)

	logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.Int("segments", len(segments)),
		zap.Int("words", doc.WordCount),
	)

	return doc, nil
}

// IngestBatch processes files independently. One bad file never aborts the
// batch; its error is reported in its result slot.
func (p *Processor) IngestBatch(ctx context.Context, files map[string][]byte, order []string) []BatchResult {
	results := make([]BatchResult, 0, len(order))
	for _, filename := range order {
		doc, err := p.Ingest(ctx, filename, files[filename])
		result := BatchResult{Filename: filename, Document: doc, Err: err}
		if err != nil {
			result.Error = err.Error()
			logger.Warn("Batch file failed", zap.String("filename", filename), zap.Error(err))
		}
		results = append(results, result)
	}
	return results
}

// Delete removes a document from the store and purges its segments from
// the index.
func (p *Processor) Delete(ctx context.Context, documentID string) error {
	segmentIDs, err := p.db.DeleteDocument(documentID)
	if err != nil {
		return err
	}

	if err := p.index.RemoveDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to remove document from index: %w", err)
	}

	if p.graph != nil {
		p.graph.RemoveDocument(ctx, documentID)
	}
	p.invalidateCache(ctx)

	logger.Info("Document deleted",
		zap.String("doc_id", documentID),
		zap.Int("segments", len(segmentIDs)),
	)
	return nil
}

// stripBoilerplate drops page-number lines and lines repeated so often
// they are headers or footers rather than content.
func stripBoilerplate(text string) string {
	lines := strings.Split(text, "\n")

	counts := make(map[string]int)
	for _, line := range lines {
		counts[line]++
	}

	repeatThreshold := 3
	if len(lines) > 200 {
		repeatThreshold = len(lines) / 50
	}

	var kept []string
	for _, line := range lines {
		if pageNumberRe.MatchString(line) {
			continue
		}
		// Blank lines repeat in any document; they separate paragraphs,
		// not headers.
		if strings.TrimSpace(line) != "" && len(line) < 60 && counts[line] >= repeatThreshold && len(lines) > 10 {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
