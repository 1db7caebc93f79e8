package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const indexerMaxTracksPerRun = 500

// indexerStart launches the AES batch indexer over unembedded tracks, per
// §4.4.5's Idle -> Running transition.
func (s *Server) indexerStart(c *gin.Context) {
	if err := s.aesSvc.Indexer().Start(c.Request.Context(), s.st, indexerMaxTracksPerRun); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) indexerPause(c *gin.Context) {
	if err := s.aesSvc.Indexer().Pause(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) indexerResume(c *gin.Context) {
	if err := s.aesSvc.Indexer().Resume(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) indexerStop(c *gin.Context) {
	if err := s.aesSvc.Indexer().Stop(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) indexerStatus(c *gin.Context) {
	status, err := s.aesSvc.GetStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.aesSvc.Indexer().State().String(), "stats": status})
}

// rebuildVisualization forces an eager rebuild of the cached waveform
// overview, per §4.4.4's rebuild_visualization_cache, bypassing the
// normal staleness check so an operator can force it on demand.
func (s *Server) rebuildVisualization(c *gin.Context) {
	if err := s.aesSvc.RebuildVisualizationCache(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
