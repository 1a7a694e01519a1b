package app

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"neuropathx/internal/explain"
	"neuropathx/internal/imaging"
	"neuropathx/internal/inference"
	"neuropathx/internal/model"
)

var ErrResultNotFound = errors.New("no result stored for session")

const (
	noteSuccess  = "Prediction successful with training-aligned preprocessing."
	noteDegraded = " Saliency explanation unavailable; heatmap omitted."
)

// Classifier is the narrow model contract the assembler needs: a black-box
// forward pass plus the one introspection capability the explainer requires.
type Classifier interface {
	Predict(ctx context.Context, t *imaging.Tensor) ([]model.ClassScore, error)
	ActivationGradient(ctx context.Context, t *imaging.Tensor, targetIndex int) (*explain.FeatureMap, *explain.FeatureMap, error)
}

// ResultStore holds the latest result per session for later report requests.
type ResultStore interface {
	Put(ctx context.Context, result *model.PredictionResult) error
	Get(ctx context.Context, sessionID string) (*model.PredictionResult, bool, error)
}

// AuditPublisher hands completed scans to the async persistence path.
type AuditPublisher interface {
	Publish(ctx context.Context, record model.ScanRecord) error
}

// AnalysisService orchestrates one classification request end to end:
// normalize, predict, explain on a best-effort basis, and assemble the
// immutable result record.
type AnalysisService struct {
	normalizer       *imaging.Normalizer
	classifier       Classifier
	store            ResultStore
	publisher        AuditPublisher
	defaultSessionID string
	slots            chan struct{}
}

func NewAnalysisService(
	normalizer *imaging.Normalizer,
	classifier Classifier,
	store ResultStore,
	publisher AuditPublisher,
	defaultSessionID string,
	inferenceSlots int,
) *AnalysisService {
	if inferenceSlots <= 0 {
		inferenceSlots = 1
	}
	if defaultSessionID == "" {
		defaultSessionID = "default"
	}
	return &AnalysisService{
		normalizer:       normalizer,
		classifier:       classifier,
		store:            store,
		publisher:        publisher,
		defaultSessionID: defaultSessionID,
		slots:            make(chan struct{}, inferenceSlots),
	}
}

// Analyze classifies an uploaded scan. Decode and prediction failures abort
// the request; explanation failures degrade it to a result without a heatmap
// and an advisory note.
func (s *AnalysisService) Analyze(ctx context.Context, raw []byte, sessionID string) (*model.PredictionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.defaultSessionID
	}
	requestID := uuid.NewString()

	img, err := imaging.Decode(raw)
	if err != nil {
		return nil, err
	}
	tensor := s.normalizer.Tensor(img)

	// Bound concurrent forward passes; a request abandoned while waiting for
	// a slot never reaches the model. Once a slot is held the pass runs to
	// completion.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s.slots <- struct{}{}:
	}
	defer func() { <-s.slots }()

	scores, err := s.classifier.Predict(ctx, tensor)
	if err != nil {
		return nil, err
	}
	topIdx := inference.TopIndex(scores)

	result := &model.PredictionResult{
		Class:      scores[topIdx].Label,
		Confidence: scores[topIdx].Confidence,
		Note:       noteSuccess,
		AllClasses: scores,
		Timestamp:  time.Now().Format(time.RFC3339),
		SessionID:  sessionID,
	}

	if heatmap, explainErr := s.renderHeatmap(ctx, img, tensor, topIdx); explainErr != nil {
		log.Warn().Err(explainErr).Str("request_id", requestID).Msg("saliency explanation degraded")
		result.Note += noteDegraded
	} else {
		result.GradCAMB64 = base64.StdEncoding.EncodeToString(heatmap)
	}

	if preview, previewErr := s.normalizer.Preview(img); previewErr != nil {
		log.Warn().Err(previewErr).Str("request_id", requestID).Msg("preview encode failed")
	} else {
		result.PreprocessedB64 = base64.StdEncoding.EncodeToString(preview)
	}

	if s.store != nil {
		if storeErr := s.store.Put(ctx, result); storeErr != nil {
			log.Error().Err(storeErr).Str("session_id", sessionID).Msg("store result failed")
		}
	}
	if s.publisher != nil {
		record := model.ScanRecord{
			SessionID:  sessionID,
			Class:      result.Class,
			Confidence: result.Confidence,
			Note:       result.Note,
			HasHeatmap: result.GradCAMB64 != "",
			CreatedAt:  time.Now(),
		}
		if pubErr := s.publisher.Publish(ctx, record); pubErr != nil {
			log.Error().Err(pubErr).Str("session_id", sessionID).Msg("publish scan record failed")
		}
	}

	return result, nil
}

// GetResult retrieves the latest stored result for a session.
func (s *AnalysisService) GetResult(ctx context.Context, sessionID string) (*model.PredictionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.defaultSessionID
	}
	if s.store == nil {
		return nil, ErrResultNotFound
	}
	result, ok, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrResultNotFound
	}
	return result, nil
}

func (s *AnalysisService) renderHeatmap(ctx context.Context, img image.Image, tensor *imaging.Tensor, topIdx int) ([]byte, error) {
	activation, gradient, err := s.classifier.ActivationGradient(ctx, tensor, topIdx)
	if err != nil {
		return nil, err
	}
	cam := explain.CAM(activation, gradient)
	return explain.Overlay(img, cam)
}
