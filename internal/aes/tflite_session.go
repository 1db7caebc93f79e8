package aes

import (
	"context"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// TFLiteSession is the reference NeuralSession implementation: a single
// loaded TensorFlow Lite interpreter running the embedding model. §1 scopes
// the neural runtime itself out of this module's responsibilities ("the
// core owns a loaded encoder and issues inference calls"), so this is one
// concrete adapter among possible others (an ONNX Runtime session would
// satisfy the same interface) rather than something SessionPool depends on
// directly.
type TFLiteSession struct {
	mu          sync.Mutex
	interpreter *tflite.Interpreter
	model       *tflite.Model
}

// NewTFLiteSession loads modelPath into its own interpreter instance so a
// SessionFactory can build one per pool slot with no shared mutable state.
func NewTFLiteSession(modelPath string, numThreads int) (*TFLiteSession, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, radioerr.New(radioerr.Internal, "load tflite model: "+modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if numThreads > 0 {
		options.SetNumThread(numThreads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, radioerr.New(radioerr.Internal, "create tflite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, radioerr.New(radioerr.Internal, "allocate tflite tensors")
	}

	return &TFLiteSession{interpreter: interpreter, model: model}, nil
}

// Infer copies the mel spectrogram into the interpreter's input tensor,
// invokes one forward pass, and reads the 100-d embedding back out.
func (s *TFLiteSession) Infer(ctx context.Context, spec *MelSpectrogram) ([VectorDim]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := s.interpreter.GetInputTensor(0)
	if input == nil {
		return [VectorDim]float32{}, radioerr.New(radioerr.Internal, "tflite input tensor 0 missing")
	}
	copy(input.Float32s(), spec.Data[:])

	if status := s.interpreter.Invoke(); status != tflite.OK {
		return [VectorDim]float32{}, radioerr.New(radioerr.Internal, "tflite invoke failed")
	}

	output := s.interpreter.GetOutputTensor(0)
	if output == nil {
		return [VectorDim]float32{}, radioerr.New(radioerr.Internal, "tflite output tensor 0 missing")
	}

	var vector [VectorDim]float32
	copy(vector[:], output.Float32s())
	return vector, nil
}

// Close releases the interpreter and model, which own native memory.
func (s *TFLiteSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interpreter != nil {
		s.interpreter.Delete()
	}
	if s.model != nil {
		s.model.Delete()
	}
	return nil
}
