package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuropathx/internal/app"
	"neuropathx/internal/config"
	"neuropathx/internal/explain"
	"neuropathx/internal/imaging"
	"neuropathx/internal/model"
)

type stubClassifier struct{}

func (stubClassifier) Predict(_ context.Context, _ *imaging.Tensor) ([]model.ClassScore, error) {
	return []model.ClassScore{
		{Label: "glioma", Confidence: 0.1},
		{Label: "meningioma", Confidence: 0.2},
		{Label: "notumor", Confidence: 0.6},
		{Label: "pituitary", Confidence: 0.1},
	}, nil
}

func (stubClassifier) ActivationGradient(_ context.Context, _ *imaging.Tensor, _ int) (*explain.FeatureMap, *explain.FeatureMap, error) {
	activation := &explain.FeatureMap{H: 2, W: 2, C: 1, Data: []float32{1, 2, 3, 4}}
	gradient := &explain.FeatureMap{H: 2, W: 2, C: 1, Data: []float32{1, 1, 1, 1}}
	return activation, gradient, nil
}

type stubStore struct {
	mu      sync.Mutex
	results map[string]*model.PredictionResult
}

func newStubStore() *stubStore {
	return &stubStore{results: make(map[string]*model.PredictionResult)}
}

func (s *stubStore) Put(_ context.Context, result *model.PredictionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.SessionID] = result
	return nil
}

func (s *stubStore) Get(_ context.Context, sessionID string) (*model.PredictionResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[sessionID]
	return result, ok, nil
}

func testService() (*app.AnalysisService, *stubStore) {
	store := newStubStore()
	normalizer := imaging.NewNormalizer(32, config.PreprocessRescale)
	svc := app.NewAnalysisService(normalizer, stubClassifier{}, store, nil, "default", 1)
	return svc, store
}

func testRouter(svc *app.AnalysisService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewAnalysisHandler(svc, 10)
	r := NewReportHandler(svc)
	router.POST("/api/v1/mri_prediction", h.Predict)
	router.GET("/api/v1/report/preview", r.Preview)
	return router
}

func pngUpload(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="scan.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("session_id", "case-1"))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func validPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 10)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPredict_ValidUpload(t *testing.T) {
	svc, _ := testService()
	router := testRouter(svc)

	body, contentType := pngUpload(t, "image/png", validPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mri_prediction", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result model.PredictionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "notumor", result.Class)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Len(t, result.AllClasses, 4)
	assert.Equal(t, "case-1", result.SessionID)
	assert.NotEmpty(t, result.GradCAMB64)
}

func TestPredict_CorruptImage(t *testing.T) {
	svc, store := testService()
	router := testRouter(svc)

	body, contentType := pngUpload(t, "image/png", []byte("garbage bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mri_prediction", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, ok, err := store.Get(context.Background(), "case-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredict_NonImageContentType(t *testing.T) {
	svc, _ := testService()
	router := testRouter(svc)

	body, contentType := pngUpload(t, "application/pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mri_prediction", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestReportPreview_UnknownSession(t *testing.T) {
	svc, _ := testService()
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report/preview?session_id=ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportPreview_RendersStoredResult(t *testing.T) {
	svc, _ := testService()
	router := testRouter(svc)

	body, contentType := pngUpload(t, "image/png", validPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mri_prediction", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	reportReq := httptest.NewRequest(http.MethodGet, "/api/v1/report/preview?session_id=case-1", nil)
	reportRec := httptest.NewRecorder()
	router.ServeHTTP(reportRec, reportReq)

	require.Equal(t, http.StatusOK, reportRec.Code)
	assert.Equal(t, "application/pdf", reportRec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(reportRec.Body.Bytes(), []byte("%PDF")))
}
