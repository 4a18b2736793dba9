package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	searchdomain "github.com/quotaapp/searchd/internal/search/domain"
	"github.com/quotaapp/searchd/internal/usercontext"
)

type searchRequest struct {
	Term string `json:"term"`
}

func (s *Server) Search(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.searchSvc.Search(c.Request.Context(), searchdomain.SearchRequest{
		UserID: userID,
		Term:   req.Term,
		Metadata: map[string]any{
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeRateLimitHeaders(c, result.Usage)
	c.JSON(http.StatusOK, result)
}

func writeRateLimitHeaders(c *gin.Context, usage quotadomain.Snapshot) {
	c.Header("X-RateLimit-Limit-Day", strconv.Itoa(quotadomain.DailyLimit))
	c.Header("X-RateLimit-Remaining-Day", strconv.Itoa(usage.DayRemaining))
	c.Header("X-RateLimit-Limit-Month", strconv.Itoa(quotadomain.MonthlyLimit))
	c.Header("X-RateLimit-Remaining-Month", strconv.Itoa(usage.MonthRemaining))
}
