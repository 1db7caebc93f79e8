package library

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arung-agamani/denpa-radio/internal/curator"
	"github.com/arung-agamani/denpa-radio/internal/curator/oracle"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// AnalysisRequest describes one track's metadata, the prompt input for
// TrackAnalyzer::analyze_track.
type AnalysisRequest struct {
	TrackID string
	Title   string
	Artist  string
	Album   string
	Genres  []string
	Year    int
}

// AnalysisResult is the structured mood/energy profile the LLM fills in,
// mirroring TrackAnalysisResult's fields exactly.
type AnalysisResult struct {
	MoodTags         []string `json:"mood_tags"`
	EnergyLevel      float64  `json:"energy_level"`
	Danceability     float64  `json:"danceability"`
	Valence          float64  `json:"valence"`
	SongType         []string `json:"song_type"`
	Themes           []string `json:"themes"`
	Acousticness     float64  `json:"acousticness"`
	Instrumentalness float64  `json:"instrumentalness"`
}

// Analyzer asks an LLM oracle to rate a track's mood and audio character
// from its metadata alone, grounded on TrackAnalyzer::analyze_track. It
// shares internal/curator's Oracle contract and JSON-extraction helper
// rather than owning a second copy of either.
type Analyzer struct {
	oracle oracle.Oracle
}

// NewAnalyzer builds an Analyzer over any Oracle implementation.
func NewAnalyzer(o oracle.Oracle) *Analyzer {
	return &Analyzer{oracle: o}
}

// AnalyzeTrack asks the oracle for a mood/energy profile and parses its
// reply, tolerating markdown fences and surrounding prose the way
// analyze_track's strip_prefix("```json") dance does, but via the shared
// brace-matching extractor instead of a prefix/suffix strip.
func (a *Analyzer) AnalyzeTrack(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	prompt := buildAnalysisPrompt(req)

	reply, err := a.oracle.Ask(ctx, prompt)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.ExternalApi, "ask analyzer oracle", err)
	}

	raw, ok := curator.ExtractFirstJSONObject(reply)
	if !ok {
		return nil, radioerr.New(radioerr.Decode, "analyzer reply contained no JSON object")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, radioerr.Wrap(radioerr.Decode, "unmarshal analyzer JSON", err)
	}
	return &result, nil
}

func buildAnalysisPrompt(req AnalysisRequest) string {
	year := "Unknown"
	if req.Year > 0 {
		year = fmt.Sprintf("%d", req.Year)
	}

	return fmt.Sprintf(`Analyze this music track and provide detailed metadata:

Track: "%s" by %s
Album: %s
Genres: %s
Year: %s

Please analyze this track and provide:
1. mood_tags: List of 3-5 mood descriptors (e.g., "energetic", "melancholic", "upbeat", "chill", "aggressive")
2. energy_level: Float 0.0-1.0 (0 = very calm, 1 = very energetic)
3. danceability: Float 0.0-1.0 (0 = not danceable, 1 = very danceable)
4. valence: Float 0.0-1.0 (0 = sad/dark, 1 = happy/bright)
5. song_type: List of types (e.g., "ballad", "anthem", "instrumental", "dance")
6. themes: List of themes (e.g., "love", "loss", "celebration", "introspection")
7. acousticness: Float 0.0-1.0 (0 = electronic, 1 = acoustic)
8. instrumentalness: Float 0.0-1.0 (0 = very vocal, 1 = purely instrumental)

Respond with ONLY a JSON object in this exact format:
{
  "mood_tags": ["tag1", "tag2", "tag3"],
  "energy_level": 0.7,
  "danceability": 0.6,
  "valence": 0.8,
  "song_type": ["type1", "type2"],
  "themes": ["theme1", "theme2"],
  "acousticness": 0.3,
  "instrumentalness": 0.1
}`, req.Title, req.Artist, req.Album, strings.Join(req.Genres, ", "), year)
}

// ApplyTo merges an AnalysisResult into a Track in place, marking it
// AIAnalyzed, per update_track_analysis's column set.
func (r *AnalysisResult) ApplyTo(t *model.Track) {
	t.MoodTags = r.MoodTags
	t.EnergyLevel = r.EnergyLevel
	t.Danceability = r.Danceability
	t.Valence = r.Valence
	t.SongType = r.SongType
	t.Themes = r.Themes
	t.Acousticness = r.Acousticness
	t.Instrumental = r.Instrumentalness
	t.AIAnalyzed = true
}
