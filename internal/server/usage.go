package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quotaapp/searchd/internal/usercontext"
)

func (s *Server) GetUsage(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	snapshot, err := s.quotaSvc.GetUsage(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
