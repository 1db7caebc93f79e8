package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-radio/internal/library"
)

const libraryAnalyzeDefaultLimit = 50

// librarySync runs a synchronous full library sync against the upstream
// Subsonic server, per §12's sync_full, blocking the request until the
// sync completes or fails. Progress events are collected and returned
// alongside the final count rather than streamed, since a full sync is a
// bounded, operator-triggered maintenance action rather than a live UI flow.
func (s *Server) librarySync(c *gin.Context) {
	progressCh := make(chan library.SyncProgress, 16)
	var steps []library.SyncProgress

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			steps = append(steps, p)
		}
	}()

	count, err := s.lib.SyncFull(c.Request.Context(), progressCh)
	close(progressCh)
	<-done

	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tracks_synced": count, "steps": steps})
}

// libraryAnalyze runs AI analysis over up to `limit` unanalyzed tracks
// (query param, default libraryAnalyzeDefaultLimit), per §12's
// analyze_unanalyzed_tracks.
func (s *Server) libraryAnalyze(c *gin.Context) {
	limit := libraryAnalyzeDefaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	count, err := s.lib.AnalyzeUnanalyzed(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tracks_analyzed": count})
}
