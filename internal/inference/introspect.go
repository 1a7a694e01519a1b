package inference

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"neuropathx/internal/explain"
	"neuropathx/internal/imaging"
)

// The explanation graph is a companion artifact exported alongside the
// classifier. It takes the normalized image plus a one-hot target vector and
// emits the designated conv layer's activation together with the gradient of
// the selected class score with respect to it. Its outputs must be named
// after the layer: "<layer>" and "grad_<layer>".

// ActivationGradient captures the designated layer's activation and the
// gradient of the target class score w.r.t. it. Failures here are never
// fatal to a prediction; every error wraps ErrSaliencyUnavailable.
func (e *Engine) ActivationGradient(ctx context.Context, t *imaging.Tensor, targetIndex int) (*explain.FeatureMap, *explain.FeatureMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if targetIndex < 0 || targetIndex >= len(e.cfg.ClassLabels) {
		return nil, nil, fmt.Errorf("%w: target index %d out of range", ErrSaliencyUnavailable, targetIndex)
	}

	e.explainMu.Lock()
	defer e.explainMu.Unlock()

	if err := e.initExplainOnce(); err != nil {
		return nil, nil, err
	}

	inData := e.explainInput.GetData()
	if len(inData) != len(t.Data) {
		return nil, nil, fmt.Errorf("%w: explain input size %d, preprocessed %d", ErrSaliencyUnavailable, len(inData), len(t.Data))
	}
	copy(inData, t.Data)

	target := e.explainTarget.GetData()
	for i := range target {
		target[i] = 0
	}
	target[targetIndex] = 1

	if err := e.explainSession.Run(); err != nil {
		return nil, nil, fmt.Errorf("%w: run explain graph: %v", ErrSaliencyUnavailable, err)
	}

	h := int(e.featureShape[1])
	w := int(e.featureShape[2])
	c := int(e.featureShape[3])

	activation := &explain.FeatureMap{Data: copyData(e.activationOut.GetData()), H: h, W: w, C: c}
	gradient := &explain.FeatureMap{Data: copyData(e.gradientOut.GetData()), H: h, W: w, C: c}
	return activation, gradient, nil
}

// initExplainOnce lazily loads the explanation session. Like the classifier
// load, the outcome is memoized; a broken explanation artifact degrades every
// request the same way instead of being re-probed. Callers hold e.explainMu.
func (e *Engine) initExplainOnce() error {
	if e.explainInited {
		return nil
	}
	if e.explainErr != nil {
		return e.explainErr
	}

	err := e.loadExplain()
	if err != nil {
		e.explainErr = fmt.Errorf("%w: %v", ErrSaliencyUnavailable, err)
		return e.explainErr
	}
	e.explainInited = true
	return nil
}

func (e *Engine) loadExplain() error {
	if err := ensureRuntime(e.cfg.ONNXSharedLibPath); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(e.cfg.ExplainPath)
	if err != nil {
		return fmt.Errorf("onnx get explain info: %w", err)
	}
	if len(inputs) < 2 {
		return fmt.Errorf("explain graph needs image and target inputs, has %d", len(inputs))
	}

	layer := e.cfg.LastConvLayer
	gradName := "grad_" + layer
	var activationInfo, gradientInfo *ort.InputOutputInfo
	for i := range outputs {
		switch outputs[i].Name {
		case layer:
			activationInfo = &outputs[i]
		case gradName:
			gradientInfo = &outputs[i]
		}
	}
	if activationInfo == nil || gradientInfo == nil {
		return fmt.Errorf("layer %q not exposed by explain graph", layer)
	}

	featureShape := concreteShape(activationInfo.Dimensions)
	if len(featureShape) != 4 {
		return fmt.Errorf("layer %q activation is not a spatial feature map", layer)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](concreteShape(inputs[0].Dimensions))
	if err != nil {
		return fmt.Errorf("onnx new explain input tensor: %w", err)
	}
	targetTensor, err := ort.NewEmptyTensor[float32](concreteShape(inputs[1].Dimensions))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new target tensor: %w", err)
	}
	activationTensor, err := ort.NewEmptyTensor[float32](featureShape)
	if err != nil {
		targetTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new activation tensor: %w", err)
	}
	gradientTensor, err := ort.NewEmptyTensor[float32](concreteShape(gradientInfo.Dimensions))
	if err != nil {
		activationTensor.Destroy()
		targetTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new gradient tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(e.cfg.ExplainPath,
		[]string{inputs[0].Name, inputs[1].Name},
		[]string{activationInfo.Name, gradientInfo.Name},
		[]ort.Value{inputTensor, targetTensor},
		[]ort.Value{activationTensor, gradientTensor}, nil)
	if err != nil {
		gradientTensor.Destroy()
		activationTensor.Destroy()
		targetTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new explain session: %w", err)
	}

	e.explainInput = inputTensor
	e.explainTarget = targetTensor
	e.activationOut = activationTensor
	e.gradientOut = gradientTensor
	e.explainSession = session
	e.featureShape = featureShape
	return nil
}

func copyData(src []float32) []float32 {
	out := make([]float32, len(src))
	copy(out, src)
	return out
}
