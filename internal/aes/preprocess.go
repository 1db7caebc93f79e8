// Package aes implements the Audio Encoder Service (§4.4): it turns audio
// files into unit-length 100-d embedding vectors, persists them, and
// answers similarity queries used by the curator's gap-fill step.
//
// Grounded on original_source/backend/src/services/audio_encoder.rs in
// full: AudioEncoderConfig, SessionPool, compute_mel_spectrogram,
// create_mel_filterbank, resize_spectrogram, normalize_embedding,
// find_similar/find_transition_tracks/find_similar_to_seeds,
// power_iteration_pca/compute_knn in rebuild_visualization_cache.
package aes

import (
	"bytes"
	"context"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

const (
	preprocessSampleRate = 22050
	nFFT                 = 2048
	hopLength            = 512
	nMels                = 96
	targetFrames         = 216
	topDB                = 80.0
	VectorDim            = 100
)

// SourceClient fetches the raw encoded bytes for a track's audio file, the
// same narrow contract ASA's SourceClient uses; AES shares the upstream
// client rather than reading local paths, since tracks live on the
// Subsonic server.
type SourceClient interface {
	StreamTrack(ctx context.Context, trackID string) ([]byte, error)
}

// MelSpectrogram is the preprocessed model input, shaped (1, 1, 96, 216)
// logically; Data is stored as a flat 96*216 row-major matrix.
type MelSpectrogram struct {
	Data [nMels * targetFrames]float32
}

// preprocess implements §4.4.1 steps 1-6: decode to mono 22050 Hz, STFT,
// mel filterbank, dB + normalize, resize time axis to 216 frames.
func preprocess(raw []byte) (*MelSpectrogram, error) {
	mono, sourceRate, err := decodeMono(raw)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Decode, "decode audio for embedding", err)
	}
	mono = resampleMono(mono, sourceRate, preprocessSampleRate)

	melPower, err := melSpectrogram(mono)
	if err != nil {
		return nil, err
	}
	melDB := powerToDB(melPower, topDB)
	resized := resizeTimeAxis(melDB, targetFrames)

	spec := &MelSpectrogram{}
	copy(spec.Data[:], resized)
	return spec, nil
}

func decodeMono(raw []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	pcmBytes, err := io.ReadAll(dec)
	if err != nil && len(pcmBytes) == 0 {
		return nil, 0, err
	}
	n := len(pcmBytes) / 2 / 2 // stereo int16
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		l := int16(uint16(pcmBytes[i*4]) | uint16(pcmBytes[i*4+1])<<8)
		r := int16(uint16(pcmBytes[i*4+2]) | uint16(pcmBytes[i*4+3])<<8)
		mono[i] = (float32(l) + float32(r)) / 2 / 32768.0
	}
	return mono, dec.SampleRate(), nil
}

// resampleMono is the same linear-interpolation kernel ASA uses, specialized
// to one channel since AES always works on mono audio.
func resampleMono(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(sourceRate) / float64(targetRate)
	outFrames := int(float64(len(samples)) / ratio)
	if outFrames <= 0 {
		return nil
	}
	out := make([]float32, outFrames)
	for f := 0; f < outFrames; f++ {
		srcPos := float64(f) * ratio
		floor := int(srcPos)
		ceil := floor + 1
		if ceil >= len(samples) {
			ceil = len(samples) - 1
		}
		if floor >= len(samples) {
			floor = len(samples) - 1
		}
		frac := float32(srcPos - float64(floor))
		a, b := samples[floor], samples[ceil]
		out[f] = a + (b-a)*frac
	}
	return out
}

var fftPlanPreprocess = fourier.NewFFT(nFFT)

// melSpectrogram computes an n_mels x n_frames power mel spectrogram via
// Hann-windowed STFT + a Slaney-normalized HTK mel filterbank.
func melSpectrogram(samples []float32) ([][]float32, error) {
	if len(samples) < nFFT {
		return nil, radioerr.New(radioerr.Validation, "audio too short for embedding analysis")
	}
	nFrames := (len(samples)-nFFT)/hopLength + 1
	filterbank := melFilterbank(nMels, nFFT, preprocessSampleRate)
	window := hannWindow(nFFT)

	mel := make([][]float32, nMels)
	for i := range mel {
		mel[i] = make([]float32, nFrames)
	}

	windowed := make([]float64, nFFT)
	for frame := 0; frame < nFrames; frame++ {
		start := frame * hopLength
		for i := 0; i < nFFT; i++ {
			windowed[i] = float64(samples[start+i]) * float64(window[i])
		}
		coeffs := fftPlanPreprocess.Coefficients(nil, windowed)
		for melIdx, filter := range filterbank {
			var energy float32
			for bin, w := range filter {
				if w == 0 {
					continue
				}
				mag := cmplxAbsSq(coeffs[bin])
				energy += float32(mag) * w
			}
			mel[melIdx][frame] = energy
		}
	}
	return mel, nil
}

func cmplxAbsSq(c complex128) float64 {
	re, im := real(c), imag(c)
	return re*re + im*im
}

func hannWindow(size int) []float32 {
	w := make([]float32, size)
	for i := range w {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1))))
	}
	return w
}

// melFilterbank builds an HTK-mel-scale, Slaney-area-normalized filterbank:
// each triangular filter's weights are scaled by 2/(f_upper-f_lower) in Hz.
func melFilterbank(nMels, nFFT int, sampleRate float32) [][]float32 {
	nBins := nFFT/2 + 1
	hzToMel := func(hz float32) float32 { return 2595 * float32(math.Log10(1+float64(hz)/700)) }
	melToHz := func(mel float32) float32 { return 700 * (float32(math.Pow(10, float64(mel)/2595)) - 1) }

	melMin := hzToMel(0)
	melMax := hzToMel(sampleRate / 2)

	melPoints := make([]float32, nMels+2)
	for i := range melPoints {
		melPoints[i] = melMin + (melMax-melMin)*float32(i)/float32(nMels+1)
	}
	hzPoints := make([]float32, len(melPoints))
	for i, m := range melPoints {
		hzPoints[i] = melToHz(m)
	}
	binPoints := make([]int, len(hzPoints))
	for i, hz := range hzPoints {
		binPoints[i] = int(math.Floor(float64((float32(nFFT) + 1) * hz / sampleRate)))
	}

	filterbank := make([][]float32, nMels)
	for i := range filterbank {
		filterbank[i] = make([]float32, nBins)
		start, center, end := binPoints[i], binPoints[i+1], binPoints[i+2]
		bandwidthHz := hzPoints[i+2] - hzPoints[i]
		if bandwidthHz <= 0 {
			continue
		}
		normFactor := 2 / bandwidthHz

		if center > start {
			for j := start; j < center && j < nBins; j++ {
				filterbank[i][j] = normFactor * float32(j-start) / float32(center-start)
			}
		}
		if end > center {
			for j := center; j < end && j < nBins; j++ {
				filterbank[i][j] = normFactor * float32(end-j) / float32(end-center)
			}
		}
	}
	return filterbank
}

// powerToDB converts power values to dB referenced to the per-utterance
// max, clipped at topDB, then normalized to [0, 1] via (x+topDB)/topDB.
func powerToDB(mel [][]float32, topDB float64) [][]float32 {
	maxPower := float32(math.Inf(-1))
	for _, row := range mel {
		for _, v := range row {
			if v > maxPower {
				maxPower = v
			}
		}
	}
	ref := maxPower
	if ref < 1e-10 {
		ref = 1e-10
	}

	out := make([][]float32, len(mel))
	for i, row := range mel {
		out[i] = make([]float32, len(row))
		for j, v := range row {
			ratio := float64(v) / float64(ref)
			if ratio < 1e-10 {
				ratio = 1e-10
			}
			db := 10 * math.Log10(ratio)
			if db < -topDB {
				db = -topDB
			}
			out[i][j] = float32((db + topDB) / topDB)
		}
	}
	return out
}

// resizeTimeAxis linearly resizes the time (frame) axis to exactly
// targetFrames frames and flattens the result row-major (mel-major).
func resizeTimeAxis(mel [][]float32, targetFrames int) []float32 {
	nMels := len(mel)
	if nMels == 0 {
		return nil
	}
	currentFrames := len(mel[0])
	out := make([]float32, nMels*targetFrames)

	if currentFrames == targetFrames {
		for m := 0; m < nMels; m++ {
			copy(out[m*targetFrames:(m+1)*targetFrames], mel[m])
		}
		return out
	}

	scale := float32(currentFrames) / float32(targetFrames)
	for m := 0; m < nMels; m++ {
		for t := 0; t < targetFrames; t++ {
			srcPos := float32(t) * scale
			floor := int(srcPos)
			ceil := floor + 1
			if ceil >= currentFrames {
				ceil = currentFrames - 1
			}
			if floor >= currentFrames {
				floor = currentFrames - 1
			}
			frac := srcPos - float32(floor)
			out[m*targetFrames+t] = mel[m][floor]*(1-frac) + mel[m][ceil]*frac
		}
	}
	return out
}
