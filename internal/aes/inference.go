package aes

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// NeuralSession runs one forward pass of the embedding model over a
// preprocessed mel spectrogram. Implementations wrap whatever inference
// runtime is available (an ONNX/tflite session, a remote inference call);
// this package only depends on the narrow contract.
type NeuralSession interface {
	Infer(ctx context.Context, spec *MelSpectrogram) ([VectorDim]float32, error)
	Close() error
}

// SessionFactory constructs one independent inference context. Acceleration
// providers are expected to be attempted first inside the factory, with
// silent fallback to CPU, per §4.4.2.
type SessionFactory func() (NeuralSession, error)

// SessionPool is a fixed-size, round-robin pool of inference contexts
// guarded by per-session mutexes, with a counting semaphore bounding
// in-flight encodings, grounded on SessionPool/AudioEncoder in
// audio_encoder.rs.
type SessionPool struct {
	sessions []sessionSlot
	nextIdx  atomic.Uint64
	sem      chan struct{}
}

type sessionSlot struct {
	mu      sync.Mutex
	session NeuralSession
}

// NewSessionPool creates poolSize independent sessions via factory and caps
// in-flight Infer calls at maxConcurrent.
func NewSessionPool(poolSize, maxConcurrent int, factory SessionFactory) (*SessionPool, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = poolSize
	}
	p := &SessionPool{sem: make(chan struct{}, maxConcurrent)}
	p.sessions = make([]sessionSlot, poolSize)
	for i := range p.sessions {
		sess, err := factory()
		if err != nil {
			p.Close()
			return nil, radioerr.Wrap(radioerr.Internal, "initialize inference session", err)
		}
		p.sessions[i].session = sess
	}
	return p, nil
}

// Infer acquires a semaphore slot, picks the next session round-robin, and
// runs inference while holding that session's lock.
func (p *SessionPool) Infer(ctx context.Context, spec *MelSpectrogram) ([VectorDim]float32, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return [VectorDim]float32{}, ctx.Err()
	}
	defer func() { <-p.sem }()

	idx := int(p.nextIdx.Add(1)-1) % len(p.sessions)
	slot := &p.sessions[idx]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	return slot.session.Infer(ctx, spec)
}

// Close releases every session's resources.
func (p *SessionPool) Close() error {
	var firstErr error
	for i := range p.sessions {
		if p.sessions[i].session == nil {
			continue
		}
		if err := p.sessions[i].session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
