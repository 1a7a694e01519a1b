package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"neuropathx/internal/config"
	"neuropathx/internal/imaging"
	"neuropathx/internal/model"
)

var (
	// ErrModelLoad means the artifact is missing or incompatible with the
	// runtime. It is fatal for the whole process, not one request: the load
	// outcome is memoized and every later call fails fast with it.
	ErrModelLoad = errors.New("model load failed")

	// ErrPredict means the forward pass itself failed. The same input will
	// fail again, so callers should not retry.
	ErrPredict = errors.New("model forward pass failed")

	// ErrSaliencyUnavailable means the explanation graph or its designated
	// layer cannot be resolved. Callers must treat it as non-fatal and
	// return the prediction without a heatmap.
	ErrSaliencyUnavailable = errors.New("saliency layer unavailable")
)

// The ONNX runtime environment is process-global and may only be set up once,
// no matter how many sessions this process opens.
var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func ensureRuntime(sharedLibPath string) error {
	runtimeOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// Engine wraps the trained brain-tumor classifier. The forward-pass surface
// is a black box; ActivationGradient is the one deliberate widening of that
// contract, needed by the Grad-CAM explainer.
type Engine struct {
	cfg config.ModelConfig

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	inited  bool
	loadErr error

	explainMu      sync.Mutex
	explainSession *ort.AdvancedSession
	explainInput   *ort.Tensor[float32]
	explainTarget  *ort.Tensor[float32]
	activationOut  *ort.Tensor[float32]
	gradientOut    *ort.Tensor[float32]
	featureShape   []int64
	explainInited  bool
	explainErr     error
}

func NewEngine(cfg config.ModelConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Labels returns the ordered class catalog fixed at construction.
func (e *Engine) Labels() []string {
	return e.cfg.ClassLabels
}

// Loaded reports whether the classifier session has been brought up.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inited
}

// initOnce loads the classifier session lazily on first use. Both success and
// failure are memoized for the process lifetime. Callers must hold e.mu.
func (e *Engine) initOnce() error {
	if e.inited {
		return nil
	}
	if e.loadErr != nil {
		return e.loadErr
	}

	err := e.load()
	if err != nil {
		e.loadErr = fmt.Errorf("%w: %v", ErrModelLoad, err)
		return e.loadErr
	}
	e.inited = true
	return nil
}

func (e *Engine) load() error {
	if err := ensureRuntime(e.cfg.ONNXSharedLibPath); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(e.cfg.ArtifactPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputShape := concreteShape(inputs[0].Dimensions)
	outputShape := concreteShape(outputs[0].Dimensions)

	classes := outputShape[len(outputShape)-1]
	if classes != int64(len(e.cfg.ClassLabels)) {
		return fmt.Errorf("artifact emits %d classes but catalog has %d", classes, len(e.cfg.ClassLabels))
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(e.cfg.ArtifactPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}

	e.input = inputTensor
	e.output = outputTensor
	e.session = session
	return nil
}

// Predict runs the forward pass and resolves the raw output vector into the
// labeled, ordered probability vector. If every raw entry already lies in
// [0, 1] the vector is trusted as a distribution; otherwise a numerically
// stable softmax is applied.
func (e *Engine) Predict(ctx context.Context, t *imaging.Tensor) ([]model.ClassScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if err := e.initOnce(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	inData := e.input.GetData()
	if len(inData) != len(t.Data) {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: input tensor size %d, preprocessed %d", ErrPredict, len(inData), len(t.Data))
	}
	copy(inData, t.Data)

	err := e.session.Run()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrPredict, err)
	}
	raw := make([]float32, len(e.output.GetData()))
	copy(raw, e.output.GetData())
	e.mu.Unlock()

	probs := toProbabilities(raw)
	scores := make([]model.ClassScore, len(e.cfg.ClassLabels))
	for i, label := range e.cfg.ClassLabels {
		scores[i] = model.ClassScore{Label: label, Confidence: probs[i]}
	}
	return scores, nil
}

// Top returns the highest-confidence entry; ties resolve to the lowest index.
func (e *Engine) Top(ctx context.Context, t *imaging.Tensor) (string, float64, int, error) {
	scores, err := e.Predict(ctx, t)
	if err != nil {
		return "", 0, -1, err
	}
	idx := TopIndex(scores)
	return scores[idx].Label, scores[idx].Confidence, idx, nil
}

// Close releases both ONNX sessions.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.session != nil {
		e.session.Destroy()
	}
	if e.input != nil {
		e.input.Destroy()
	}
	if e.output != nil {
		e.output.Destroy()
	}
	e.session, e.input, e.output = nil, nil, nil
	e.inited = false
	e.mu.Unlock()

	e.explainMu.Lock()
	if e.explainSession != nil {
		e.explainSession.Destroy()
	}
	for _, t := range []*ort.Tensor[float32]{e.explainInput, e.explainTarget, e.activationOut, e.gradientOut} {
		if t != nil {
			t.Destroy()
		}
	}
	e.explainSession, e.explainInput, e.explainTarget = nil, nil, nil
	e.activationOut, e.gradientOut = nil, nil
	e.explainInited = false
	e.explainMu.Unlock()
}

// concreteShape replaces dynamic dimensions with a batch of one.
func concreteShape(dims ort.Shape) ort.Shape {
	out := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}
