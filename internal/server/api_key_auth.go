package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quotaapp/searchd/internal/usercontext"
)

// APIKeyRequired authenticates requests with a bearer API key and puts
// the owning user on the request context.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
