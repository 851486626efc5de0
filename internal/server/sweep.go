package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RunExpirySweep(c *gin.Context) {
	summary, err := s.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}
