// Package mp3 implements the persistent MP3 encoder worker AB drives, per
// §4.3.1/§5: a single lame_global_flags session that lives for the whole
// broadcast and is never flushed between segments, only torn down and
// rebuilt on Reset (a skip). The encoder runs on a goroutine pinned to its
// own OS thread with runtime.LockOSThread, driven by a synchronous command
// channel, matching §5's "dedicated blocking worker" model.
//
// Grounded on haivivi-giztoy/go/pkg/audio/codec/mp3.Encoder, a cgo binding
// over liblame. That package's Write/Flush/Close already model "keep
// writing into one encoder session, flush once"; this worker adds the
// float32-to-int16 conversion AP's PCM uses, the per-call byte capture
// (so each Encode returns just the bytes that call produced, for
// §4.3.2's segment framing), and the channel-based ownership protocol.
package mp3

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"

	giztoymp3 "github.com/haivivi/giztoy/go/pkg/audio/codec/mp3"
)

// Fixed contract per §4.3.1: 44100 Hz, 2 channels, 192 kbps CBR, quality best.
const (
	SampleRate = 44100
	Channels   = 2
	BitrateKbps = 192
)

var errClosed = errors.New("mp3: encoder worker is closed")

type requestKind int

const (
	reqEncode requestKind = iota
	reqReset
	reqShutdown
)

type request struct {
	kind    requestKind
	samples []float32
	resp    chan response
}

type response struct {
	payload []byte
	err     error
}

// Encoder is the persistent MP3 encoder worker for one broadcaster. It is
// safe to call from any goroutine; all calls are serialized onto the
// worker's dedicated thread via a synchronous channel.
type Encoder struct {
	reqCh  chan request
	doneCh chan struct{}
}

// New starts the worker goroutine and returns a handle to it. The caller
// must call Shutdown when done to release the underlying LAME session.
func New() *Encoder {
	e := &Encoder{
		reqCh:  make(chan request),
		doneCh: make(chan struct{}),
	}
	go e.run()
	return e
}

// Encode converts interleaved float32 PCM samples in [-1, 1] to int16 and
// feeds them into the live LAME session, returning exactly the compressed
// bytes that call produced (the session's internal frame buffer may carry
// partial frames across calls; this is deliberate — it's what makes the
// stream gapless, per §4.3.1's "never flush between segments" invariant).
func (e *Encoder) Encode(samples []float32) ([]byte, error) {
	resp := make(chan response, 1)
	select {
	case e.reqCh <- request{kind: reqEncode, samples: samples, resp: resp}:
	case <-e.doneCh:
		return nil, errClosed
	}
	r := <-resp
	return r.payload, r.err
}

// Reset tears down the current LAME session and starts a fresh one with
// identical parameters. Called on skip, per §4.3.4: the segment immediately
// following a reset must be independently decodable, so the new session's
// first Encode call carries no residual state from the discarded track.
func (e *Encoder) Reset() error {
	resp := make(chan response, 1)
	select {
	case e.reqCh <- request{kind: reqReset, resp: resp}:
	case <-e.doneCh:
		return errClosed
	}
	r := <-resp
	return r.err
}

// Shutdown flushes and closes the live session and stops the worker
// goroutine. The Encoder must not be used afterward.
func (e *Encoder) Shutdown() error {
	resp := make(chan response, 1)
	select {
	case e.reqCh <- request{kind: reqShutdown, resp: resp}:
	case <-e.doneCh:
		return nil
	}
	r := <-resp
	return r.err
}

func (e *Encoder) run() {
	defer close(e.doneCh)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var buf bytes.Buffer
	var session *giztoymp3.Encoder

	open := func() error {
		buf.Reset()
		enc, err := giztoymp3.NewEncoder(&buf, SampleRate, Channels, giztoymp3.WithBitrate(BitrateKbps))
		if err != nil {
			return fmt.Errorf("mp3: open lame session: %w", err)
		}
		session = enc
		return nil
	}
	closeSession := func() {
		if session == nil {
			return
		}
		_ = session.Flush()
		_ = session.Close()
		session = nil
	}

	if err := open(); err != nil {
		// Defer surfacing the failure to the first Encode/Reset call;
		// there is no synchronous caller to report to yet.
		session = nil
	}

	for req := range e.reqCh {
		switch req.kind {
		case reqEncode:
			if session == nil {
				if err := open(); err != nil {
					req.resp <- response{err: err}
					continue
				}
			}
			pcm := floatToPCM16LE(req.samples)
			buf.Reset()
			if len(pcm) > 0 {
				if _, err := session.Write(pcm); err != nil {
					req.resp <- response{err: fmt.Errorf("mp3: encode: %w", err)}
					continue
				}
			}
			out := make([]byte, buf.Len())
			copy(out, buf.Bytes())
			req.resp <- response{payload: out}

		case reqReset:
			closeSession()
			err := open()
			req.resp <- response{err: err}

		case reqShutdown:
			closeSession()
			req.resp <- response{}
			return
		}
	}
}

// floatToPCM16LE converts interleaved float32 samples in [-1, 1] to
// interleaved signed 16-bit little-endian PCM bytes, clamping out-of-range
// values rather than wrapping them.
func floatToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
