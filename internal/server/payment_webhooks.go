package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// PaymentWebhook ingests one provider delivery. A 200 is the ack the
// provider expects; duplicates and ignored event types also ack so the
// provider stops retrying.
func (s *Server) PaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	if err := s.paymentSvc.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
