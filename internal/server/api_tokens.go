package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
)

func (s *Server) ListAPITokens(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.credentialSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// CreateAPIToken returns the raw token. It is never retrievable again.
func (s *Server) CreateAPIToken(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req credentialdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.credentialSvc.Issue(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) DeleteAPIToken(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.credentialSvc.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListAPITokenScopes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": scope.All()})
}
