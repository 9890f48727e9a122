package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/metrics"
	"github.com/resilience2relief/backend/internal/orchestrator"
	"github.com/resilience2relief/backend/pkg/logger"
)

type GenerateHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewGenerateHandler(o *orchestrator.Orchestrator) *GenerateHandler {
	return &GenerateHandler{orchestrator: o}
}

// HandleGenerate serves POST /api/v1/generate.
func (h *GenerateHandler) HandleGenerate(c *fiber.Ctx) error {
	var req orchestrator.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	resp, err := h.orchestrator.HandleGenerate(c.Context(), &req)
	if err != nil {
		return h.mapError(c, err)
	}

	metrics.GenerateTotal.WithLabelValues("success").Inc()
	metrics.GenerateDuration.WithLabelValues(boolLabel(resp.Data.Metadata.Grounded)).Observe(resp.ProcessingTimeSeconds)
	metrics.ProjectsGenerated.Add(float64(resp.Data.TotalProjects))
	metrics.RetrievalResultsCount.Observe(float64(resp.Data.Metadata.SegmentsUsed))
	if resp.Data.Metadata.FilterFallback {
		metrics.PrefilterFallbacks.Inc()
	}

	return c.JSON(resp)
}

// HandleHistory serves GET /api/v1/generate/history.
func (h *GenerateHandler) HandleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	records, err := h.orchestrator.History(limit)
	if err != nil {
		logger.Error("Failed to load generation history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load generation history",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"history": records,
	})
}

// mapError distinguishes user errors from system faults so callers can
// tell "fix your input" from "try again later".
func (h *GenerateHandler) mapError(c *fiber.Ctx, err error) error {
	metrics.GenerateTotal.WithLabelValues("error").Inc()

	switch {
	case errors.Is(err, orchestrator.ErrInvalidQuery),
		errors.Is(err, orchestrator.ErrInvalidCount),
		errors.Is(err, orchestrator.ErrInvalidFilter):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, orchestrator.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	default:
		logger.Error("Generate request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Project generation failed",
		})
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
