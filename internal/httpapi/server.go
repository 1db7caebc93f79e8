// Package httpapi is the control surface (§6, "contract not shape"):
// HLS playlist/segment delivery, visualization streaming, curation
// requests, station and indexer control, and stats. Rebuilt on
// github.com/gin-gonic/gin (already an indirect teacher dependency,
// promoted to direct use here) following the route-table and JSON-envelope
// conventions of internal/radio/server.go and internal/radio/handler/*.go.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-radio/internal/aes"
	"github.com/arung-agamani/denpa-radio/internal/auth"
	"github.com/arung-agamani/denpa-radio/internal/curator"
	"github.com/arung-agamani/denpa-radio/internal/library"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
	"github.com/arung-agamani/denpa-radio/internal/station"
	"github.com/arung-agamani/denpa-radio/internal/store"
)

// Server wires the station manager, AES service, curator, library indexer,
// persistence, and auth instance into one gin engine, grounded on
// radio.Server's field set.
type Server struct {
	stations *station.Manager
	aesSvc   *aes.Service
	cur      *curator.Curator
	lib      *library.Indexer
	st       *store.Store
	authn    *auth.Auth

	engine     *gin.Engine
	httpServer *http.Server
}

// Config carries the fixed parameters the server is built with.
type Config struct {
	Addr string
}

// New builds the gin engine and registers every route.
func New(cfg Config, stations *station.Manager, aesSvc *aes.Service, cur *curator.Curator, lib *library.Indexer, st *store.Store, authn *auth.Auth) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		stations: stations,
		aesSvc:   aesSvc,
		cur:      cur,
		lib:      lib,
		st:       st,
		authn:    authn,
		engine:   engine,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	return s
}

// securityHeaders mirrors internal/radio/middleware.go's
// SecurityHeadersMiddleware, kept verbatim since the control surface needs
// the same clickjacking/MIME-sniffing/XSS mitigations the teacher already
// applies.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.POST("/api/auth/login", s.handleLogin)

	stations := s.engine.Group("/api/stations")
	{
		stations.GET("", s.listStations)
		stations.GET("/:id", s.getStation)
		stations.GET("/:id/playlist.m3u8", s.hlsPlaylist)
		stations.GET("/:id/segment/:seqfile", s.hlsSegment)
		stations.GET("/:id/now-playing", s.nowPlaying)
		stations.GET("/:id/visualization", s.visualizationStream)
	}

	protected := s.engine.Group("/api")
	protected.Use(s.authRequired())
	{
		protected.POST("/stations", s.createStation)
		protected.POST("/stations/:id/start", s.startStation)
		protected.POST("/stations/:id/stop", s.stopStation)
		protected.POST("/stations/:id/skip", s.skipStation)

		protected.POST("/curate", s.requestCuration)
		protected.GET("/curate/progress", s.curationProgressWS)

		protected.POST("/indexer/start", s.indexerStart)
		protected.POST("/indexer/pause", s.indexerPause)
		protected.POST("/indexer/resume", s.indexerResume)
		protected.POST("/indexer/stop", s.indexerStop)
		protected.GET("/indexer/status", s.indexerStatus)
		protected.POST("/visualization/rebuild", s.rebuildVisualization)

		protected.POST("/library/sync", s.librarySync)
		protected.POST("/library/analyze", s.libraryAnalyze)
	}
}

// authRequired delegates straight into auth.Auth's own gin middleware;
// Bearer extraction and token validation both live in internal/auth now,
// so this package no longer duplicates that logic.
func (s *Server) authRequired() gin.HandlerFunc {
	return s.authn.GinMiddleware()
}

func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	token, err := s.authn.Authenticate(body.Username, body.Password, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "token": token})
}

// Run starts the HTTP server, blocking until ctx (via the caller's
// shutdown path) or a listener error ends it.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server by closing its listeners and any open
// connections immediately, without waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}

// writeError maps a radioerr.Error to its HTTP status; any other error is
// a 500 with a generic message.
func writeError(c *gin.Context, err error) {
	if rerr, ok := err.(*radioerr.Error); ok {
		c.JSON(rerr.Kind.HTTPStatus(), gin.H{"status": "error", "error": rerr.Msg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "internal error"})
}
