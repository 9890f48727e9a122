package handlers

import (
	"database/sql"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/ingestion"
	"github.com/resilience2relief/backend/internal/metrics"
	"github.com/resilience2relief/backend/internal/storage/sqlite"
	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
	index     vector.Index
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client, index vector.Index) *DocumentHandler {
	return &DocumentHandler{processor: processor, db: db, index: index}
}

// HandleUpload serves POST /api/v1/documents. Accepts one or more files
// as multipart form data; each file succeeds or fails independently.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Multipart form data required",
		})
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "At least one file is required under the 'files' field",
		})
	}

	files := make(map[string][]byte, len(fileHeaders))
	var order []string
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			logger.Warn("Failed to open uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
			continue
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.Warn("Failed to read uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
			continue
		}
		files[fh.Filename] = content
		order = append(order, fh.Filename)
	}

	results := h.processor.IngestBatch(c.Context(), files, order)

	succeeded := 0
	for _, r := range results {
		format := ingestion.Format(r.Filename)
		if format == "" {
			format = "unknown"
		}
		if r.Err == nil {
			succeeded++
			metrics.DocumentsIngested.WithLabelValues(format, "success").Inc()
		} else {
			metrics.DocumentsIngested.WithLabelValues(format, "error").Inc()
		}
	}
	metrics.SegmentsIndexed.Set(float64(h.index.Size()))

	status := fiber.StatusOK
	if succeeded == 0 {
		status = fiber.StatusBadRequest
	}

	return c.Status(status).JSON(fiber.Map{
		"success":  succeeded > 0,
		"ingested": succeeded,
		"failed":   len(results) - succeeded,
		"results":  results,
	})
}

// HandleList serves GET /api/v1/documents with offset/limit pagination.
func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := h.db.ListDocuments(offset, limit)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
		"documents": docs,
	})
}

// HandleDelete serves DELETE /api/v1/documents/:id.
func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.processor.Delete(c.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Document not found",
			})
		}
		logger.Error("Failed to delete document", zap.String("doc_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to delete document",
		})
	}

	metrics.SegmentsIndexed.Set(float64(h.index.Size()))

	return c.JSON(fiber.Map{
		"success": true,
		"deleted": id,
	})
}

// HandleStats serves GET /api/v1/stats.
func (h *DocumentHandler) HandleStats(c *fiber.Ctx) error {
	docCount, err := h.db.CountDocuments()
	if err != nil {
		logger.Error("Failed to count documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to compute stats",
		})
	}
	segCount, _ := h.db.CountSegments()
	genCount, _ := h.db.CountGenerations()

	return c.JSON(fiber.Map{
		"success": true,
		"stats": fiber.Map{
			"totalDocuments":         docCount,
			"totalSegments":          segCount,
			"totalGenerations":       genCount,
			"indexedSegments":        h.index.Size(),
			"embedderVersion":        h.index.EmbedderVersion(),
			"availableSectors":       taxonomy.Sectors(),
			"supportedRegions":       taxonomy.Regions(),
			"supportedDisasterTypes": taxonomy.DisasterTypes(),
			"supportedFormats":       ingestion.SupportedFormats,
		},
	})
}
