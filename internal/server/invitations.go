package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
)

func (s *Server) RespondToInvitation(c *gin.Context) {
	var req struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ident := callerIdentity(c)
	member, err := s.membershipSvc.RespondToInvitation(c.Request.Context(), ident.UserID, c.Param("id"),
		membershipdomain.ResponseAction(strings.TrimSpace(req.Action)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": member})
}

func (s *Server) ListPendingInvitations(c *gin.Context) {
	ident := callerIdentity(c)
	invitations, err := s.membershipSvc.ListPendingInvitations(c.Request.Context(), ident.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": invitations})
}
