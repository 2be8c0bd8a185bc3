package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
)

type authorizeServiceResponse struct {
	Authorized bool `json:"authorized"`
	*credentialdomain.Decoded
}

// AuthorizeService verifies the bearer credential against the scope in the
// path. A one-time credential is consumed only when it is authorized.
func (s *Server) AuthorizeService(c *gin.Context) {
	required, err := scope.Parse(c.Param("scope"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw, ok := bearerToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	decoded, err := s.credentialSvc.Verify(c.Request.Context(), raw, required)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, authorizeServiceResponse{Authorized: true, Decoded: decoded})
}
