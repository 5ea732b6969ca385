package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nodeboard/nodeboard/internal/billing/domain"
	"go.uber.org/zap"
)

// HandleBillingWebhook ingests a provider delivery. Only signature failures
// and unknown providers are rejected; any failure after verification is
// acknowledged with 200 so the provider does not retry a payload we already
// hold in the event ledger.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.billingSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, billingdomain.ErrProviderNotFound):
		AbortWithError(c, ErrNotFound)
	case errors.Is(err, billingdomain.ErrInvalidSignature),
		errors.Is(err, billingdomain.ErrMissingSignature):
		status := http.StatusBadRequest
		if provider == "revenuecat" {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: "webhook signature verification failed"})
	case errors.Is(err, billingdomain.ErrEventAlreadyProcessed):
		c.JSON(http.StatusOK, gin.H{"success": true})
	default:
		s.log.Error("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
