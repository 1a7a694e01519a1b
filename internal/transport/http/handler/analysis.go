package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"neuropathx/internal/app"
	"neuropathx/internal/imaging"
	"neuropathx/internal/inference"
	"neuropathx/internal/transport/http/response"
)

// AnalysisHandler accepts MRI uploads and serves classification results.
type AnalysisHandler struct {
	service       *app.AnalysisService
	maxUploadSize int64
}

func NewAnalysisHandler(service *app.AnalysisService, maxUploadMB int) *AnalysisHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &AnalysisHandler{
		service:       service,
		maxUploadSize: int64(maxUploadMB) << 20,
	}
}

// Predict accepts a multipart form with "file" (the scan image) and an
// optional "session_id", classifies the scan, and returns the result record.
// The success body is the raw result object; collaborators depend on its
// exact field names.
func (h *AnalysisHandler) Predict(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing scan file (form field 'file')")
		return
	}
	if file.Size > h.maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "scan file too large")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedMedia, "unsupported file type, expected an image")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open uploaded file")
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read scan file")
		return
	}

	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}

	result, err := h.service.Analyze(c.Request.Context(), raw, sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AnalysisHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, imaging.ErrDecode):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "uploaded bytes are not a valid image")
	case errors.Is(err, inference.ErrModelLoad):
		response.Error(c, http.StatusServiceUnavailable, response.CodeModelUnavailable, "model unavailable: "+err.Error())
	case errors.Is(err, inference.ErrPredict):
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "prediction failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "analysis failed")
	}
}
