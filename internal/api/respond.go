package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/carepath/internal/apperr"
	"github.com/lalith-99/carepath/internal/repository"
	"go.uber.org/zap"
)

const msgUnexpected = "An unexpected error has occurred"

// respondError answers with the status and message of an *apperr.Error.
// Anything else is logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		if e.Status >= http.StatusInternalServerError {
			logger.Error("failed to "+action, zap.Error(err))
		}
		c.JSON(e.Status, gin.H{"message": e.Message})
		return
	}
	logger.Error("failed to "+action, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": msgUnexpected})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
}

// paramID parses a uuid path parameter and answers 400 when it is malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name + "."})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter. A missing value gives nil.
func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name + "."})
		return nil, false
	}
	return &id, true
}

// pageFrom reads page, limit and sort from the query string. Bad numbers
// fall back to the defaults.
func pageFrom(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return repository.Page{Page: page, Limit: limit, Sort: c.Query("sort")}.Normalize()
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
