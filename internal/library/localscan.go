package library

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// localAudioExtensions lists the file extensions ScanLocalDir recognizes,
// grounded on playlist/track.go's SupportedFormats list.
var localAudioExtensions = []string{".mp3", ".wav", ".flac", ".aac", ".ogg"}

func isLocalAudioFile(ext string) bool {
	lower := strings.ToLower(ext)
	for _, f := range localAudioExtensions {
		if lower == f {
			return true
		}
	}
	return false
}

// ScanLocalDir walks dir for audio files and builds a model.Track per file
// from its ID3/Vorbis tags, falling back to the filename when a file has
// no tags worth reading. It is the fallback library source for a deployment
// with no upstream Subsonic server (§12), distinct from SyncFull's
// Subsonic-backed path.
func ScanLocalDir(dir string) ([]model.Track, error) {
	return scanLocalDir(context.Background(), dir, nil)
}

// ScanLocalDirTranscoding is ScanLocalDir plus eager MP3 normalization of
// any non-MP3 file via tc, so the resulting Track.Path always points at
// something internal/asa's MP3-only decoder can stream directly (§4.1).
func ScanLocalDirTranscoding(ctx context.Context, dir string, tc *Transcoder) ([]model.Track, error) {
	return scanLocalDir(ctx, dir, tc)
}

func scanLocalDir(ctx context.Context, dir string, tc *Transcoder) ([]model.Track, error) {
	var tracks []model.Track

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !isLocalAudioFile(filepath.Ext(path)) {
			return nil
		}

		t, scanErr := trackFromFile(path)
		if scanErr != nil {
			slog.Warn("library: skipping unreadable local file", "path", path, "error", scanErr)
			return nil
		}

		if tc != nil && strings.ToLower(filepath.Ext(path)) != ".mp3" {
			mp3Path, tcErr := tc.ToMP3(ctx, path)
			if tcErr != nil {
				slog.Warn("library: transcode failed, skipping file", "path", path, "error", tcErr)
				return nil
			}
			t.Path = mp3Path
		}

		tracks = append(tracks, *t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func trackFromFile(path string) (*model.Track, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	checksum, err := fileChecksum(absPath)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", absPath, err)
	}

	filename := filepath.Base(absPath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	t := &model.Track{
		ID:    checksum,
		Title: title,
		Path:  absPath,
	}
	applyLocalTags(t, absPath)
	return t, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// applyLocalTags reads ID3/Vorbis tags and overlays them onto t's
// filename-derived defaults. A file with unreadable tags keeps those
// defaults rather than failing the scan.
func applyLocalTags(t *model.Track, path string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("library: could not open file for metadata", "path", path, "error", err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("library: could not read tags", "path", path, "error", err)
		return
	}

	if m.Title() != "" {
		t.Title = m.Title()
	}
	if m.Artist() != "" {
		t.Artist = m.Artist()
	}
	if m.Album() != "" {
		t.Album = m.Album()
	}
	if m.Genre() != "" {
		t.Genres = []string{m.Genre()}
	}
	if m.Year() != 0 {
		t.Year = m.Year()
	}
}
