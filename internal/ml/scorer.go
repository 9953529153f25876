package ml

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"titanic-predictor/internal/features"
)

// Scorer is the loaded model: it maps a batch of normalized feature rows to
// one survival probability per row. Implementations own whatever transient
// buffers a call needs and must release them before returning, on success
// and failure alike.
type Scorer interface {
	Score(rows [][]float32) ([]float32, error)
	Close() error
}

// ONNXScorer runs inference through an ONNX Runtime session loaded from a
// serialized model artifact.
type ONNXScorer struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// NewONNXScorer opens the artifact at path and prepares a session expecting
// a (N×6) float input and a (N×1) float output. libraryPath optionally
// points at the onnxruntime shared library; empty uses the platform default.
func NewONNXScorer(path, libraryPath string) (*ONNXScorer, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, &LoadError{
			Source: path,
			Err:    fmt.Errorf("expected 1 input and at least 1 output, got %d/%d", len(inputs), len(outputs)),
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	return &ONNXScorer{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

// Score runs one forward pass. Input and output tensors are allocated per
// call and destroyed unconditionally before returning.
func (s *ONNXScorer) Score(rows [][]float32) ([]float32, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	flat := make([]float32, 0, len(rows)*features.VectorSize)
	for i, row := range rows {
		if len(row) != features.VectorSize {
			return nil, fmt.Errorf("row %d: expected %d features, got %d", i, features.VectorSize, len(row))
		}
		flat = append(flat, row...)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(rows)), features.VectorSize), flat)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(len(rows)), 1))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer output.Destroy()

	s.mu.Lock()
	err = s.session.Run([]ort.Value{input}, []ort.Value{output})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}

	data := output.GetData()
	if len(data) < len(rows) {
		return nil, fmt.Errorf("model returned %d values for %d rows", len(data), len(rows))
	}
	out := make([]float32, len(rows))
	copy(out, data)
	return out, nil
}

// Close releases the ONNX session. Safe to call more than once.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}
