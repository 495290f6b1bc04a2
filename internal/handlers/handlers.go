package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/internal/errs"
	"taskify/internal/query"
)

// parseListQuery decodes the list-endpoint parameters (where, sort, select,
// skip, limit, count). Malformed input answers the request itself and
// reports ok=false.
func parseListQuery(c *gin.Context) (query.Query, bool) {
	q, err := query.Parse(query.Params{
		Where:  c.Query("where"),
		Sort:   c.Query("sort"),
		Select: c.Query("select"),
		Skip:   c.Query("skip"),
		Limit:  c.Query("limit"),
		Count:  c.Query("count"),
	})
	if err != nil {
		respondServiceError(c, err)
		return query.Query{}, false
	}
	return q, true
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Client mistakes keep their message and offending ids; anything unexpected
// is logged and answered with a generic body.
func respondServiceError(c *gin.Context, err error) {
	kind := errs.KindOf(err)

	var status int
	switch kind {
	case errs.BadInput, errs.RelationshipInvalid, errs.UniqueViolation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	default:
		log.Printf("[handlers] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   errs.CodeStorageFailure,
			"message": "failed to process request",
		})
		return
	}

	payload := gin.H{"error": errs.CodeOf(err), "message": err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		payload["message"] = e.Message
		if len(e.IDs) > 0 {
			payload["ids"] = e.IDs
		}
	}
	c.JSON(status, payload)
}

func respondBadBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_body",
		"message": err.Error(),
	})
}
