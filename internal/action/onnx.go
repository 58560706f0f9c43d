package action

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXScorer classifies window summaries with an ONNX MLP. The model maps
// the FeatureDim summary vector to one logit per label.
type ONNXScorer struct {
	mu           sync.Mutex // session tensors are single-slot
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	labels       []string
}

// NewONNXScorer loads the action classifier model. labels must match the
// model's output order and normally ends with NoAction.
func NewONNXScorer(modelPath string, labels []string) (*ONNXScorer, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels configured")
	}

	inputShape := ort.NewShape(1, int64(FeatureDim))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(len(labels)))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"features"},
		[]string{"logits"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create scorer session: %w", err)
	}

	return &ONNXScorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		labels:       labels,
	}, nil
}

// Score runs one classification. The ctx deadline is checked before the
// run; onnxruntime itself is not cancellable mid-inference.
func (s *ONNXScorer) Score(ctx context.Context, f FeatureSummary) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), f.Vector())
	if err := s.session.Run(); err != nil {
		return Score{}, fmt.Errorf("run scorer: %w", err)
	}

	logits := s.outputTensor.GetData()
	probs := softmax(logits)

	best := 0
	for i := 1; i < len(s.labels); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Score{Label: s.labels[best], Confidence: probs[best]}, nil
}

func (s *ONNXScorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
}

func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	max := float64(logits[0])
	for _, l := range logits[1:] {
		if float64(l) > max {
			max = float64(l)
		}
	}
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
