package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/export"
	"github.com/resilience2relief/backend/internal/synthesis"
	"github.com/resilience2relief/backend/pkg/logger"
)

type ExportHandler struct{}

func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// HandleExport serves POST /api/v1/export. The caller submits previously
// generated projects plus a format; export itself reads no state.
func (h *ExportHandler) HandleExport(c *fiber.Ctx) error {
	var req struct {
		Format   string              `json:"format"`
		Projects []synthesis.Project `json:"projects"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse export request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if len(req.Projects) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "At least one project is required",
		})
	}

	format := export.Format(strings.ToLower(req.Format))
	data, contentType, err := export.Export(req.Projects, format)
	if err != nil {
		var unknownFormat *export.ErrUnknownFormat
		if errors.As(err, &unknownFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		logger.Error("Export failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Export failed",
		})
	}

	ext := "json"
	if format == export.FormatMarkdown {
		ext = "md"
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="projects.%s"`, ext))
	return c.Send(data)
}
