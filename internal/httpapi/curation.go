package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arung-agamani/denpa-radio/internal/curator"
)

var curationUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// requestCuration runs a synchronous curation request and returns the
// resulting ordered track ids, per §6's "request curation (query, limit)"
// control operation.
func (s *Server) requestCuration(c *gin.Context) {
	var body struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if body.Limit <= 0 {
		body.Limit = 20
	}

	ids, err := s.cur.Curate(c.Request.Context(), body.Query, body.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "track_ids": ids})
}

// curationProgressWS upgrades to a websocket connection and streams the
// curator's Progress events for one curation run, grounded on the teacher's
// gorilla/websocket usage pattern (already a direct go.mod dependency) for
// the curation engine's progress channel (§4.5's CheckingEmbeddings ->
// SelectingSeeds -> ... -> Completed sequence).
func (s *Server) curationProgressWS(c *gin.Context) {
	query := c.Query("query")
	limit := 20

	conn, err := curationUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	progressCh := make(chan curator.Progress, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ids, err := s.cur.CurateWithProgress(c.Request.Context(), query, limit, progressCh)
		if err != nil {
			conn.WriteJSON(gin.H{"step": "error", "message": err.Error()})
			return
		}
		conn.WriteJSON(gin.H{"step": "result", "track_ids": ids})
	}()

	for {
		select {
		case p, open := <-progressCh:
			if !open {
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-done:
			for {
				select {
				case p, open := <-progressCh:
					if !open {
						return
					}
					conn.WriteJSON(p)
				default:
					return
				}
			}
		}
	}
}
