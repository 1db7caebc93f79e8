package broadcast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// VisualizationData is one ~33 ms frame of real-time stream analysis,
// published on the broadcaster's lossy visualization channel (§4.3.5).
type VisualizationData struct {
	TimestampMs int64     `json:"timestamp_ms"`
	Spectrum    []float32 `json:"spectrum"`
	Level       float32   `json:"level"`
	Beat        bool      `json:"beat"`
	TrackID     string    `json:"track_id"`
}

// SubscribeVisualization registers a new lossy visualization receiver. The
// caller must call UnsubscribeVisualization when done.
func (b *Broadcaster) SubscribeVisualization() (<-chan VisualizationData, uint64) {
	b.vizMu.Lock()
	defer b.vizMu.Unlock()
	id := b.nextVizID
	b.nextVizID++
	ch := make(chan VisualizationData, vizChanCapacity)
	b.vizSubs[id] = ch
	return ch, id
}

func (b *Broadcaster) UnsubscribeVisualization(id uint64) {
	b.vizMu.Lock()
	defer b.vizMu.Unlock()
	if ch, ok := b.vizSubs[id]; ok {
		delete(b.vizSubs, id)
		close(ch)
	}
}

func (b *Broadcaster) publishViz(v VisualizationData) {
	b.vizMu.Lock()
	defer b.vizMu.Unlock()
	for _, ch := range b.vizSubs {
		select {
		case ch <- v:
		default:
			// Slow subscriber drops the frame; never blocks the broadcast loop.
		}
	}
}

var fftPlan = fourier.NewFFT(fftSize)

// computeVisualization implements §4.3.5: downmix to mono, RMS level, a
// Hann-windowed real FFT binned into 64 log-compressed bars.
func computeVisualization(window []float32) ([]float32, float32) {
	frames := len(window) / 2
	mono := make([]float64, frames)
	var sumSq float64
	for i := 0; i < frames; i++ {
		v := (float64(window[i*2]) + float64(window[i*2+1])) / 2
		mono[i] = v
		sumSq += v * v
	}
	level := float32(math.Sqrt(sumSq / float64(frames)))

	fftLen := fftSize
	if frames < fftLen {
		fftLen = frames
	}
	windowed := make([]float64, fftSize)
	for i := 0; i < fftLen; i++ {
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftLen)))
		windowed[i] = mono[i] * hann
	}

	coeffs := fftPlan.Coefficients(nil, windowed)
	magnitudes := make([]float64, fftSize/2)
	for i := range magnitudes {
		magnitudes[i] = cmplxAbs(coeffs[i]) / float64(fftSize)
	}

	binsPerBar := len(magnitudes) / spectrumBars
	spectrum := make([]float32, spectrumBars)
	for i := 0; i < spectrumBars; i++ {
		start := i * binsPerBar
		end := start + binsPerBar
		var sum float64
		for _, m := range magnitudes[start:end] {
			sum += m
		}
		avg := sum / float64(binsPerBar)
		spectrum[i] = float32(math.Log(1+avg) / 5)
	}

	return spectrum, level
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// detectBeat implements §4.3.5's beat heuristic: a beat fires when the
// current level exceeds mean(history) + 1.5*stdev(history), is above 0.1,
// and at least 150 ms have passed since the last beat.
func detectBeat(level float32, history *[]float64, lastBeat *time.Duration, now time.Duration) bool {
	h := *history
	h = append(h, float64(level))
	if len(h) > beatHistoryLen {
		h = h[len(h)-beatHistoryLen:]
	}
	*history = h

	if len(h) < 10 {
		return false
	}

	var mean float64
	for _, v := range h {
		mean += v
	}
	mean /= float64(len(h))

	var variance float64
	for _, v := range h {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(h))
	stdev := math.Sqrt(variance)

	threshold := mean + 1.5*stdev

	if float64(level) > threshold && level > 0.1 && now-*lastBeat > beatMinInterval {
		*lastBeat = now
		return true
	}
	return false
}
