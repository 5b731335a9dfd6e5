package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/logging"
	log "github.com/sirupsen/logrus"
)

// Default and maximum page sizes accepted from query strings.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// errorBody renders a classified error.
func errorBody(e *apperr.Error) gin.H {
	return gin.H{"error": e.Code, "message": e.Message}
}

// classify resolves err and hides the cause of internal failures from the client.
func classify(c *gin.Context, err error) (int, gin.H) {
	e := apperr.From(err)
	status := apperr.HTTPStatus(e.Kind)
	if e.Kind == apperr.KindInternal {
		log.WithError(err).WithField("request_id", logging.GetGinRequestID(c)).Error("http: internal error")
		return status, errorBody(apperr.ErrInternal)
	}
	return status, errorBody(e)
}

// WriteError writes err as a JSON error response.
func WriteError(c *gin.Context, err error) {
	status, body := classify(c, err)
	_ = c.Error(err)
	c.JSON(status, body)
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := classify(c, err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// InvalidJSON writes the response for an undecodable request body.
func InvalidJSON(c *gin.Context) {
	WriteError(c, apperr.ErrInvalidInput.WithMessage("invalid json"))
}

// ParsePage reads page and limit query parameters. Page is 1-based.
func ParsePage(c *gin.Context) (int, int) {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), DefaultPageLimit)
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func parsePositiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// Paged renders one page of results.
func Paged(items any, total int64, page, limit int) gin.H {
	return gin.H{"items": items, "total": total, "page": page, "limit": limit}
}
