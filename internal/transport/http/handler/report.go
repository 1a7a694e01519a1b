package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"neuropathx/internal/app"
	"neuropathx/internal/report"
	"neuropathx/internal/transport/http/response"
)

// ReportHandler renders the diagnostic PDF for a previously stored result.
type ReportHandler struct {
	service *app.AnalysisService
}

func NewReportHandler(service *app.AnalysisService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Preview serves the PDF inline so it opens in an iframe or browser tab.
func (h *ReportHandler) Preview(c *gin.Context) {
	h.serve(c, "inline")
}

// Download serves the PDF as an attachment.
func (h *ReportHandler) Download(c *gin.Context) {
	h.serve(c, `attachment; filename="MRI_Report.pdf"`)
}

func (h *ReportHandler) serve(c *gin.Context, disposition string) {
	sessionID := c.Query("session_id")

	result, err := h.service.GetResult(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, app.ErrResultNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeResultNotFound, "no report available for this session")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to load result")
		return
	}

	pdf, err := report.Generate(result)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to render report")
		return
	}

	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
