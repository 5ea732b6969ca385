package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
)

func (s *Server) CreateProject(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ident := callerIdentity(c)
	resp, err := s.projectSvc.Create(c.Request.Context(), ident.UserID, projectdomain.CreateProjectRequest{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) GetProject(c *gin.Context) {
	ident := callerIdentity(c)
	resp, err := s.projectSvc.GetByID(c.Request.Context(), ident.UserID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}
