package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"neuropathx/internal/repository"
	"neuropathx/internal/transport/http/response"
)

// ScanHandler exposes the persisted audit trail of past classifications.
type ScanHandler struct {
	repo *repository.ScanRepository
}

func NewScanHandler(repo *repository.ScanRepository) *ScanHandler {
	return &ScanHandler{repo: repo}
}

// History lists persisted scan records for a session, newest first.
func (h *ScanHandler) History(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "session_id is required")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.repo.ListBySessionID(sessionID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to list scans")
		return
	}
	response.OK(c, gin.H{"scans": records})
}
