package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trading-account-engine/internal/domain/shared"
)

// StateStreamer upgrades a request into a stream of account states
type StateStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, accountID shared.AccountID) error
}

// StreamHandler serves the WebSocket account stream
type StreamHandler struct {
	streamer StateStreamer
	logger   *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(logger *slog.Logger, streamer StateStreamer) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		logger:   logger,
	}
}

// Stream follows the published states of one account
func (h *StreamHandler) Stream(c *gin.Context) {
	accountID, err := shared.NewAccountID(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	if err := h.streamer.Serve(c.Writer, c.Request, accountID); err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("Stream upgrade failed", "account_id", accountID.String(), "error", err)
	}
}
