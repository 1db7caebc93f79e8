// Package asa implements the Audio Source Adapter (§4.1): it fetches
// encoded bytes for a track id from the upstream library server, decodes
// them to interleaved stereo PCM at 44100 Hz, and hands back one finite
// sample vector per track. Decoding is eager and whole-file; there is no
// streaming decode.
package asa

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

const (
	targetSampleRate = 44100
	targetChannels   = 2
)

// SourceClient is the narrow upstream dependency ASA needs: raw encoded
// bytes for a track id. internal/subsonic.Client satisfies this.
type SourceClient interface {
	StreamTrack(ctx context.Context, trackID string) ([]byte, error)
}

// Adapter fetches and decodes tracks into PCM.
type Adapter struct {
	source SourceClient
}

func New(source SourceClient) *Adapter {
	return &Adapter{source: source}
}

// FetchPCM implements fetch_pcm(track_id) from §4.1: fetch -> probe ->
// decode -> channel mix -> resample. Failures are tagged SourceFetch,
// Decode, or Unsupported (surfaced here as radioerr.Decode) per §7.
func (a *Adapter) FetchPCM(ctx context.Context, trackID string) (*model.PCM, error) {
	raw, err := a.source.StreamTrack(ctx, trackID)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.SourceFetch, "fetch track "+trackID, err)
	}

	samples, sourceRate, sourceChannels, err := decode(raw)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Decode, "decode track "+trackID, err)
	}

	mixed := mixChannels(samples, sourceChannels, targetChannels)
	resampled := resample(mixed, sourceRate, targetSampleRate, targetChannels)

	return &model.PCM{
		Samples:    resampled,
		SampleRate: targetSampleRate,
		Channels:   targetChannels,
	}, nil
}

// decode sniffs the container and decodes to interleaved float32 PCM at the
// source's native rate/channel count. Only MP3 is handled directly here
// (the common case for a Subsonic library); other containers are expected
// to have been normalized by the library ingestion pipeline
// (internal/library.Transcoder) before reaching ASA.
func decode(raw []byte) ([]float32, int, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("unsupported or corrupt audio container: %w", err)
	}

	pcmBytes, err := io.ReadAll(dec)
	if err != nil && len(pcmBytes) == 0 {
		return nil, 0, 0, fmt.Errorf("mp3 decode failed: %w", err)
	}

	// go-mp3 always decodes to 16-bit signed little-endian stereo.
	const sourceChannels = 2
	n := len(pcmBytes) / 2 / sourceChannels
	samples := make([]float32, n*sourceChannels)
	for i := 0; i < n*sourceChannels; i++ {
		lo := pcmBytes[i*2]
		hi := pcmBytes[i*2+1]
		v := int16(uint16(lo) | uint16(hi)<<8)
		samples[i] = float32(v) / 32768.0
	}

	return samples, dec.SampleRate(), sourceChannels, nil
}
