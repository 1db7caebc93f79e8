package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	hlsPlaylistContentType = "application/vnd.apple.mpegurl"
	hlsSegmentContentType  = "audio/mpeg"
)

// hlsPlaylist serves a station's sliding-window media playlist, per §4.3.6.
// The path segment naming ("segment/<seq>.mp3") must match RenderPlaylist's
// own output exactly, since a client resolves those relative URIs itself.
func (s *Server) hlsPlaylist(c *gin.Context) {
	b, ok := s.stations.Broadcaster(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "station not active"})
		return
	}

	c.Header("Content-Type", hlsPlaylistContentType)
	c.Header("Cache-Control", "no-cache, no-store")
	c.String(http.StatusOK, b.RenderPlaylist())
}

// hlsSegment serves one HLS segment by sequence number, per §4.3.7. A
// sequence outside the live sliding window is a 404, never a stale body.
func (s *Server) hlsSegment(c *gin.Context) {
	b, ok := s.stations.Broadcaster(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "station not active"})
		return
	}

	seqStr := strings.TrimSuffix(c.Param("seqfile"), ".mp3")
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid segment sequence"})
		return
	}

	segment, ok := b.GetSegment(seq)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "segment not in live window"})
		return
	}

	c.Header("Content-Type", hlsSegmentContentType)
	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, hlsSegmentContentType, segment.Payload)
}
