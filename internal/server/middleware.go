package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orgkeys/internal/identity"
	obscontext "github.com/smallbiznis/orgkeys/internal/observability/context"
)

const (
	headerAuthorization = "Authorization"
	headerRetryAfter    = "Retry-After"
	bearerPrefix        = "bearer "

	endpointServiceAuthorize = "service_authorize"
)

// IdentityRequired trusts the principal headers set by the identity provider.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := identity.FromHeaders(c.Request.Header)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := identity.WithPrincipal(c.Request.Context(), principal)
		ctx = obscontext.WithActor(ctx, "user", principal.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext resolves :orgId into the request context.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := identity.ParseOrgID(c.Param("orgId"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := identity.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// VerifyRateLimit throttles credential verification per client IP.
func (s *Server) VerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.verifyLimiter.Enabled() {
			c.Next()
			return
		}

		res := s.verifyLimiter.AllowClient(c.Request.Context(), c.ClientIP())
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimited(endpointServiceAuthorize)
			if res.RetryAfter > 0 {
				seconds := int64(math.Ceil(res.RetryAfter.Seconds()))
				c.Header(headerRetryAfter, strconv.FormatInt(seconds, 10))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(headerAuthorization))
	if len(raw) <= len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	return token, token != ""
}
