package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
)

func (s *Server) InviteMember(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ident := callerIdentity(c)
	member, err := s.membershipSvc.Invite(c.Request.Context(), ident.UserID, c.Param("id"), membershipdomain.InviteRequest{
		UserID: strings.TrimSpace(req.UserID),
		Email:  strings.TrimSpace(req.Email),
		Role:   membershipdomain.Role(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": member})
}

func (s *Server) ListMembers(c *gin.Context) {
	ident := callerIdentity(c)
	members, err := s.membershipSvc.ListMembers(c.Request.Context(), ident.UserID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ident := callerIdentity(c)
	member, err := s.membershipSvc.UpdateRole(c.Request.Context(), ident.UserID, c.Param("id"), c.Param("user_id"),
		membershipdomain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": member})
}

func (s *Server) RemoveMember(c *gin.Context) {
	ident := callerIdentity(c)
	if err := s.membershipSvc.RemoveMember(c.Request.Context(), ident.UserID, c.Param("id"), c.Param("user_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
