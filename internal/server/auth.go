package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/menuvia/menuvia/internal/auth/domain"
)

// Logout revokes the caller's session and expires the cookie. A
// request without a live session still clears the cookie so the
// endpoint is safe to retry.
func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		err := s.authsvc.Logout(c.Request.Context(), token)
		if err != nil && !errors.Is(err, authdomain.ErrInvalidSession) {
			AbortWithError(c, err)
			return
		}
	}

	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
