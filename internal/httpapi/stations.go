package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

func (s *Server) listStations(c *gin.Context) {
	stations, err := s.st.ListStations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stations": stations})
}

func (s *Server) getStation(c *gin.Context) {
	st, ok, err := s.st.GetStation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "station not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "station": st})
}

func (s *Server) createStation(c *gin.Context) {
	var body struct {
		Path        string   `json:"path"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Genres      []string `json:"genres"`
		MoodTags    []string `json:"mood_tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "name is required"})
		return
	}

	st := model.Station{
		ID:          uuid.NewString(),
		Path:        body.Path,
		Name:        body.Name,
		Description: body.Description,
		Genres:      body.Genres,
		MoodTags:    body.MoodTags,
		Config: model.StationConfig{
			SegmentDurationSecs: 2,
			PlaylistLength:      5,
			BufferSeconds:       30,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.st.PutStation(c.Request.Context(), st); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "station": st})
}

func (s *Server) startStation(c *gin.Context) {
	if err := s.stations.StartStation(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stopStation(c *gin.Context) {
	if err := s.stations.StopStation(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) skipStation(c *gin.Context) {
	if err := s.stations.SkipTrack(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) nowPlaying(c *gin.Context) {
	state, ok := s.stations.NowPlaying(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "station not active"})
		return
	}
	if state == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "track": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "track": state})
}
