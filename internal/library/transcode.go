package library

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// mp3CacheSuffix marks a file ToMP3 produced by transcoding a
// non-MP3 local file, so a rescan can detect and skip a cache hit instead
// of re-invoking ffmpeg.
const mp3CacheSuffix = ".denpa.mp3"

// Transcoder converts a local audio file to MP3 via ffmpeg, adapted from
// ffmpeg/encoder.go's ConvertToOGG for the MP3 target internal/asa's
// decoder actually understands (§4.1 decodes MP3 directly and expects
// other containers to have been normalized upstream of ASA).
type Transcoder struct {
	bitrate    string
	sampleRate string
	channels   string
}

// NewTranscoder builds a Transcoder with the given target MP3 parameters.
func NewTranscoder(bitrate, sampleRate, channels string) *Transcoder {
	return &Transcoder{bitrate: bitrate, sampleRate: sampleRate, channels: channels}
}

// ToMP3 converts inputFile to an MP3 sibling file and returns its path.
// If a cached conversion already exists next to inputFile it is reused.
func (t *Transcoder) ToMP3(ctx context.Context, inputFile string) (string, error) {
	outputFile := strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + mp3CacheSuffix
	if fileExists(outputFile) {
		return outputFile, nil
	}

	args := []string{
		"-y",
		"-i", inputFile,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", t.bitrate,
		"-ac", t.channels,
		"-ar", t.sampleRate,
		"-map_metadata", "0",
		outputFile,
	}

	slog.Info("library: transcoding local file to mp3", "input", inputFile, "output", outputFile)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg mp3 transcode failed (%s): %w", stderrBuf.String(), err)
	}
	return outputFile, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
