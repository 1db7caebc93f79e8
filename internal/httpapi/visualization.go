package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// visualizationStream streams a station's real-time FFT/beat frames as
// server-sent events, per §4.3.5. Each connection is its own lossy
// subscriber — a slow client drops frames rather than stalling the
// broadcaster, the same non-blocking fan-out internal/broadcast itself
// uses for the channel this reads from.
func (s *Server) visualizationStream(c *gin.Context) {
	b, ok := s.stations.Broadcaster(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "station not active"})
		return
	}

	ch, subID := b.SubscribeVisualization()
	defer b.UnsubscribeVisualization(subID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case frame, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("visualization", frame)
			return true
		}
	})
}
