// Package subsonic is a client for the Subsonic/OpenSubsonic API exposed by
// a Navidrome (or compatible) media server, the upstream library source for
// the radio's track index. Grounded on navidrome.rs in full.
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

const (
	apiVersion   = "1.16.1"
	clientName   = "denpa-radio"
	saltBytes    = 8
	responseRoot = "subsonic-response"
)

// Client talks to a Subsonic-compatible server using token+salt auth, per
// NavidromeClient::new's `md5(password + salt)` scheme.
type Client struct {
	baseURL  string
	username string
	token    string
	salt     string
	http     *http.Client
}

// New builds a Client, generating a fresh random salt and deriving the auth
// token the way generate_salt/NavidromeClient::new does.
func New(baseURL, username, password string) (*Client, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Internal, "generate subsonic salt", err)
	}
	sum := md5.Sum([]byte(password + salt))
	return &Client{
		baseURL:  baseURL,
		username: username,
		token:    hex.EncodeToString(sum[:]),
		salt:     salt,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func generateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (c *Client) baseParams() url.Values {
	v := url.Values{}
	v.Set("u", c.username)
	v.Set("t", c.token)
	v.Set("s", c.salt)
	v.Set("v", apiVersion)
	v.Set("c", clientName)
	v.Set("f", "json")
	return v
}

// SearchTracks implements search_tracks: a search3 query bounded to count
// results, mapped into model.Track.
func (c *Client) SearchTracks(ctx context.Context, query string, count int) ([]model.Track, error) {
	params := c.baseParams()
	params.Set("query", query)
	params.Set("songCount", strconv.Itoa(count))

	body, err := c.get(ctx, "/rest/search3", params)
	if err != nil {
		return nil, err
	}

	root := gjson.GetBytes(body, responseRoot)
	if !root.Exists() {
		return nil, radioerr.New(radioerr.Decode, "subsonic response missing subsonic-response envelope")
	}
	if status := root.Get("status"); status.Exists() && status.String() != "ok" {
		return nil, radioerr.New(radioerr.ExternalApi, fmt.Sprintf("subsonic error: %s", root.Get("error.message").String()))
	}

	songs := root.Get("searchResult3.song").Array()
	tracks := make([]model.Track, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, songFromJSON(song))
	}
	return tracks, nil
}

func songFromJSON(song gjson.Result) model.Track {
	var genres []string
	if arr := song.Get("genres").Array(); len(arr) > 0 {
		for _, g := range arr {
			if name := g.Get("name").String(); name != "" {
				genres = append(genres, name)
			}
		}
	} else if legacy := song.Get("genre").String(); legacy != "" {
		genres = []string{legacy}
	}

	return model.Track{
		ID:           song.Get("id").String(),
		Title:        song.Get("title").String(),
		Artist:       song.Get("artist").String(),
		Album:        song.Get("album").String(),
		Year:         int(song.Get("year").Int()),
		DurationSecs: int(song.Get("duration").Int()),
		Genres:       genres,
		Path:         song.Get("path").String(),
	}
}

// StreamURL builds a direct-stream URL for a track, per get_stream_url.
func (c *Client) StreamURL(trackID string) string {
	params := c.baseParams()
	params.Set("id", trackID)
	return c.baseURL + "/rest/stream?" + params.Encode()
}

// StreamTrack fetches a track's encoded audio bytes from the /rest/stream
// endpoint, implementing internal/asa.SourceClient. Unlike get_stream_url
// (which only ever builds a redirect URL for a browser client), ASA needs
// the raw bytes in-process to decode.
func (c *Client) StreamTrack(ctx context.Context, trackID string) ([]byte, error) {
	params := c.baseParams()
	params.Set("id", trackID)
	return c.get(ctx, "/rest/stream", params)
}

// CoverArtURL builds a cover-art URL at the given pixel size, per
// get_cover_url.
func (c *Client) CoverArtURL(trackID string, size int) string {
	params := c.baseParams()
	params.Set("id", trackID)
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}
	return c.baseURL + "/rest/getCoverArt?" + params.Encode()
}

// Genres fetches the server's real genre list via getGenres. Unlike
// get_genres (which issues the request, discards the response, and returns
// a hardcoded list regardless of outcome), this parses the actual response
// and falls back to a default set only when the call fails, the response
// reports an error, or it lists no genres — a supplemented feature per
// SPEC_FULL §12.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/rest/getGenres", c.baseParams())
	if err != nil {
		return defaultGenres(), nil
	}

	root := gjson.GetBytes(body, responseRoot)
	if !root.Exists() || (root.Get("status").Exists() && root.Get("status").String() != "ok") {
		return defaultGenres(), nil
	}

	names := root.Get("genres.genre.#.value").Array()
	if len(names) == 0 {
		names = root.Get("genres.genre.#.name").Array()
	}
	if len(names) == 0 {
		return defaultGenres(), nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.String())
	}
	return out, nil
}

func defaultGenres() []string {
	return []string{"Rock", "Pop", "Jazz", "Classical", "Electronic", "Hip Hop", "Blues", "Country"}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	full := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Internal, "build subsonic request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.SourceFetch, "subsonic request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Decode, "read subsonic response body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, radioerr.New(radioerr.ExternalApi, fmt.Sprintf("subsonic returned status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
