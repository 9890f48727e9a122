// Package orchestrator coordinates a generate request end to end:
// validation, retrieval, synthesis, and the response envelope.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	rediscache "github.com/resilience2relief/backend/internal/cache/redis"
	"github.com/resilience2relief/backend/internal/retriever"
	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/internal/storage/sqlite"
	"github.com/resilience2relief/backend/internal/synthesis"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/utils"
)

const responseCacheTTL = 10 * time.Minute

// ResponseData is the payload portion of a generate response.
type ResponseData struct {
	TotalProjects int                 `json:"totalProjects"`
	Projects      []synthesis.Project `json:"projects"`
	Metadata      ResponseMetadata    `json:"metadata"`
}

// ResponseMetadata describes how the projects were produced.
type ResponseMetadata struct {
	Grounded       bool   `json:"grounded"`
	SegmentsUsed   int    `json:"segmentsUsed"`
	FilterFallback bool   `json:"filterFallback"`
	Generator      string `json:"generator"`
}

// Response is the generate envelope.
type Response struct {
	Success               bool         `json:"success"`
	Message               string       `json:"message"`
	Data                  ResponseData `json:"data"`
	Timestamp             time.Time    `json:"timestamp"`
	ProcessingTimeSeconds float64      `json:"processingTimeSeconds"`
}

type Orchestrator struct {
	retriever      *retriever.Retriever
	synthesizer    *synthesis.Synthesizer
	db             *sqlite.Client
	cache          *rediscache.Client
	generatorName  string
	requestTimeout time.Duration
}

func New(r *retriever.Retriever, s *synthesis.Synthesizer, db *sqlite.Client, generatorName string, requestTimeout time.Duration) *Orchestrator {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Orchestrator{
		retriever:      r,
		synthesizer:    s,
		db:             db,
		generatorName:  generatorName,
		requestTimeout: requestTimeout,
	}
}

// WithCache attaches a response cache.
func (o *Orchestrator) WithCache(cache *rediscache.Client) *Orchestrator {
	o.cache = cache
	return o
}

// HandleGenerate runs the full pipeline for one request. Validation
// failures return before any retrieval work. Retrieval finding nothing is
// not an error: the response degrades to heuristic-only projects and says
// so. A deadline hit returns ErrTimeout with no partial results.
func (o *Orchestrator) HandleGenerate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	start := time.Now()

	constraints, err := validate(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	requestHash := hashRequest(req)
	if o.cache != nil {
		var cached Response
		if ok, err := o.cache.GetResponse(ctx, requestHash, &cached); err == nil && ok {
			logger.Info("Generate served from cache", zap.String("request_hash", requestHash))
			return &cached, nil
		}
	}

	refs, fellBack, err := o.retrieve(ctx, req, constraints)
	if err != nil {
		return nil, err
	}
	grounded := len(refs) > 0

	projects, err := o.synthesizer.SynthesizeWithConstraints(ctx, req.Query, constraints, refs, req.MaxProjects)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, o.requestTimeout)
		}
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, o.requestTimeout)
	}

	message := fmt.Sprintf("Generated %d project(s) from %d reference segment(s)", len(projects), len(refs))
	if !grounded {
		message = fmt.Sprintf("Generated %d project(s) from sector heuristics; no matching reference content was found", len(projects))
	}

	elapsed := time.Since(start)
	resp := &Response{
		Success: true,
		Message: message,
		Data: ResponseData{
			TotalProjects: len(projects),
			Projects:      projects,
			Metadata: ResponseMetadata{
				Grounded:       grounded,
				SegmentsUsed:   len(refs),
				FilterFallback: fellBack,
				Generator:      o.generatorName,
			},
		},
		Timestamp:             time.Now().UTC(),
		ProcessingTimeSeconds: elapsed.Seconds(),
	}

	o.recordHistory(req, projects, grounded, len(refs), elapsed)

	if o.cache != nil {
		if err := o.cache.SetResponse(ctx, requestHash, resp, responseCacheTTL); err != nil {
			logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return resp, nil
}

// retrieve runs retrieval, mapping the recoverable retrieval errors to an
// empty, ungrounded context. System faults still propagate.
func (o *Orchestrator) retrieve(ctx context.Context, req *GenerateRequest, constraints synthesis.Constraints) ([]retriever.Result, bool, error) {
	refs, fellBack, err := o.retriever.Retrieve(ctx, req.Query, retriever.Filters{
		Sectors:       constraints.Sectors,
		Regions:       constraints.Regions,
		DisasterTypes: constraints.DisasterTypes,
	})
	if err != nil {
		if errors.Is(err, retriever.ErrNoRelevantContent) {
			logger.Info("No relevant content, degrading to heuristics", zap.String("query", req.Query))
			return nil, fellBack, nil
		}
		if errors.Is(err, retriever.ErrEmbeddingVersionMismatch) {
			logger.Warn("Embedder version mismatch, degrading to heuristics", zap.Error(err))
			return nil, false, nil
		}
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w after %s", ErrTimeout, o.requestTimeout)
		}
		return nil, false, fmt.Errorf("retrieval failed: %w", err)
	}
	return refs, fellBack, nil
}

func (o *Orchestrator) recordHistory(req *GenerateRequest, projects []synthesis.Project, grounded bool, segmentsUsed int, elapsed time.Duration) {
	record := &models.GenerationRecord{
		ID:           uuid.New().String(),
		Query:        req.Query,
		ProjectCount: len(projects),
		Grounded:     grounded,
		SegmentsUsed: segmentsUsed,
		LatencyMS:    int(elapsed.Milliseconds()),
		CreatedAt:    time.Now().UTC(),
	}

	var provenance []models.ProvenanceRecord
	for _, p := range projects {
		for _, prov := range p.Provenance {
			provenance = append(provenance, models.ProvenanceRecord{
				GenerationID: record.ID,
				ProjectID:    p.ID,
				SegmentID:    prov.SegmentID,
				DocumentID:   prov.DocumentID,
				Score:        prov.Score,
			})
		}
	}

	if err := o.db.InsertGenerationRecord(record, provenance); err != nil {
		logger.Warn("Failed to record generation history", zap.Error(err))
	}
}

// History returns recent generation records.
func (o *Orchestrator) History(limit int) ([]models.GenerationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return o.db.GetGenerationHistory(limit)
}

func hashRequest(req *GenerateRequest) string {
	data, _ := json.Marshal(req)
	return utils.HashBytes(data)
}
