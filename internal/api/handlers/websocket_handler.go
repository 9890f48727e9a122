package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/orchestrator"
	"github.com/resilience2relief/backend/pkg/logger"
)

// WebSocketHandler streams generate progress: one message per project as
// it becomes available, then a completion envelope.
type WebSocketHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewWebSocketHandler(o *orchestrator.Orchestrator) *WebSocketHandler {
	return &WebSocketHandler{orchestrator: o}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	// The reader goroutine cancels ctx when the connection drops, so an
	// in-flight generation stops instead of running to completion for a
	// client that is gone.
	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	requests := make(chan orchestrator.GenerateRequest)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var msg struct {
				Type    string                       `json:"type"`
				Request orchestrator.GenerateRequest `json:"request"`
			}

			if err := c.ReadJSON(&msg); err != nil {
				logger.Info("WebSocket read ended", zap.Error(err))
				return
			}

			if msg.Type != "generate" {
				continue
			}

			select {
			case requests <- msg.Request:
			case <-ctx.Done():
				return
			}
		}
	}()

	for req := range requests {
		logger.Info("Processing WebSocket generate", zap.String("query", req.Query))

		if err := h.streamGenerate(ctx, c, &req); err != nil {
			logger.Error("Failed to stream generation", zap.Error(err))
			h.send(c, "error", err.Error())
		}
	}
}

func (h *WebSocketHandler) streamGenerate(ctx context.Context, c *websocket.Conn, req *orchestrator.GenerateRequest) error {
	h.send(c, "status", "Retrieving reference content...")

	resp, err := h.orchestrator.HandleGenerate(ctx, req)
	if err != nil {
		return err
	}

	for i, project := range resp.Data.Projects {
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "project",
			"index":   i,
			"total":   resp.Data.TotalProjects,
			"project": project,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"response": resp,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	}); err != nil {
		logger.Warn("Failed to send WebSocket message", zap.Error(err))
	}
}
