package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/orgkeys/internal/invitation/domain"
)

func (s *Server) ListInvitations(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invitationSvc.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateInvitation(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invitationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.invitationSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) UpdateInvitation(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invitationdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.invitationSvc.Update(c.Request.Context(), orgID, c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	orgID, err := orgIDFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invitationSvc.Revoke(c.Request.Context(), orgID, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListMyInvitations(c *gin.Context) {
	items, err := s.invitationSvc.ListForPrincipal(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	resp, err := s.invitationSvc.Accept(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeclineInvitation(c *gin.Context) {
	if err := s.invitationSvc.Decline(c.Request.Context(), c.Param("code")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
