package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
)

func (s *Server) CreateOrganization(c *gin.Context) {
	var req organizationdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.orgSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListOrganizations(c *gin.Context) {
	items, err := s.orgSvc.ListForUser(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.orgSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgSvc.Delete(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListMembers(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.orgSvc.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) UpdateMember(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, err := memberIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req organizationdomain.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.orgSvc.UpdateMemberPermissions(c.Request.Context(), orgID, userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RemoveMember also serves leaving: the caller passes their own user id.
func (s *Server) RemoveMember(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, err := memberIDFromPath(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgSvc.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func memberIDFromPath(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("userId")))
	if err != nil || id <= 0 {
		return 0, organizationdomain.ErrInvalidUser
	}
	return id, nil
}
