package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const gatewaySignatureHeader = "X-Gateway-Signature"

// HandleGatewayWebhook authenticates the delivery against the raw
// body and always acknowledges duplicates with 200 so the gateway
// stops retrying.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.webhookSvc.IngestWebhook(c.Request.Context(), payload, c.GetHeader(gatewaySignatureHeader))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
