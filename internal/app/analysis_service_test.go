package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuropathx/internal/config"
	"neuropathx/internal/explain"
	"neuropathx/internal/imaging"
	"neuropathx/internal/model"
)

var testLabels = []string{"glioma", "meningioma", "notumor", "pituitary"}

type fakeClassifier struct {
	scores     []model.ClassScore
	predictErr error
	explainErr error
}

func (f *fakeClassifier) Predict(_ context.Context, _ *imaging.Tensor) ([]model.ClassScore, error) {
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	return f.scores, nil
}

func (f *fakeClassifier) ActivationGradient(_ context.Context, _ *imaging.Tensor, _ int) (*explain.FeatureMap, *explain.FeatureMap, error) {
	if f.explainErr != nil {
		return nil, nil, f.explainErr
	}
	activation := &explain.FeatureMap{H: 2, W: 2, C: 1, Data: []float32{1, 2, 3, 4}}
	gradient := &explain.FeatureMap{H: 2, W: 2, C: 1, Data: []float32{0.1, 0.2, 0.3, 0.4}}
	return activation, gradient, nil
}

type memoryStore struct {
	mu      sync.Mutex
	results map[string]*model.PredictionResult
}

func newMemoryStore() *memoryStore {
	return &memoryStore{results: make(map[string]*model.PredictionResult)}
}

func (m *memoryStore) Put(_ context.Context, result *model.PredictionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.SessionID] = result
	return nil
}

func (m *memoryStore) Get(_ context.Context, sessionID string) (*model.PredictionResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[sessionID]
	return result, ok, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []model.ScanRecord
}

func (p *recordingPublisher) Publish(_ context.Context, record model.ScanRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

func grayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func defaultScores() []model.ClassScore {
	return []model.ClassScore{
		{Label: "glioma", Confidence: 0.05},
		{Label: "meningioma", Confidence: 0.8},
		{Label: "notumor", Confidence: 0.1},
		{Label: "pituitary", Confidence: 0.05},
	}
}

func newService(classifier *fakeClassifier, store ResultStore, publisher AuditPublisher) *AnalysisService {
	normalizer := imaging.NewNormalizer(32, config.PreprocessRescale)
	return NewAnalysisService(normalizer, classifier, store, publisher, "default", 2)
}

func TestAnalyze_Success(t *testing.T) {
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	svc := newService(&fakeClassifier{scores: defaultScores()}, store, publisher)

	result, err := svc.Analyze(context.Background(), grayPNG(t), "case-42")
	require.NoError(t, err)

	assert.Equal(t, "meningioma", result.Class)
	assert.Contains(t, testLabels, result.Class)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Len(t, result.AllClasses, len(testLabels))
	assert.Equal(t, "case-42", result.SessionID)
	assert.NotEmpty(t, result.Timestamp)
	assert.NotEmpty(t, result.GradCAMB64)
	assert.NotEmpty(t, result.PreprocessedB64)

	stored, ok, err := store.Get(context.Background(), "case-42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Class, stored.Class)

	require.Len(t, publisher.records, 1)
	assert.True(t, publisher.records[0].HasHeatmap)
}

func TestAnalyze_CorruptBytesStoresNothing(t *testing.T) {
	store := newMemoryStore()
	svc := newService(&fakeClassifier{scores: defaultScores()}, store, nil)

	_, err := svc.Analyze(context.Background(), []byte("not an image"), "case-1")
	assert.ErrorIs(t, err, imaging.ErrDecode)

	_, ok, getErr := store.Get(context.Background(), "case-1")
	require.NoError(t, getErr)
	assert.False(t, ok)
}

func TestAnalyze_ExplainFailureDegradesGracefully(t *testing.T) {
	store := newMemoryStore()
	classifier := &fakeClassifier{
		scores:     defaultScores(),
		explainErr: assert.AnError,
	}
	svc := newService(classifier, store, nil)

	result, err := svc.Analyze(context.Background(), grayPNG(t), "case-7")
	require.NoError(t, err)

	assert.Empty(t, result.GradCAMB64)
	assert.Contains(t, result.Note, "heatmap omitted")
	assert.NotEmpty(t, result.PreprocessedB64)
}

func TestAnalyze_BlankSessionFallsBackToDefault(t *testing.T) {
	store := newMemoryStore()
	svc := newService(&fakeClassifier{scores: defaultScores()}, store, nil)

	result, err := svc.Analyze(context.Background(), grayPNG(t), "  ")
	require.NoError(t, err)
	assert.Equal(t, "default", result.SessionID)
}

func TestAnalyze_PredictFailurePropagates(t *testing.T) {
	svc := newService(&fakeClassifier{predictErr: assert.AnError}, newMemoryStore(), nil)

	_, err := svc.Analyze(context.Background(), grayPNG(t), "case-9")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGetResult_MissingSession(t *testing.T) {
	svc := newService(&fakeClassifier{scores: defaultScores()}, newMemoryStore(), nil)

	_, err := svc.GetResult(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrResultNotFound)
}
