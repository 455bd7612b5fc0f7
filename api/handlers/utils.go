package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kutbudev/boardroom/internal/intake"
)

// writeError maps intake errors to status codes. Unknown errors are logged and hidden.
func (h *Handler) writeError(c *gin.Context, err error) {
	var receiptErr *intake.ReceiptError
	var persistErr *intake.PersistenceError
	switch {
	case errors.As(err, &receiptErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "needs_manual_entry",
			"extracted": receiptErr.Record,
		})
	case errors.Is(err, intake.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, intake.ErrNotAwaitingReview):
		c.JSON(http.StatusConflict, gin.H{"error": "not_awaiting_review"})
	case errors.Is(err, intake.ErrCyclicHierarchy):
		c.JSON(http.StatusConflict, gin.H{"error": "cyclic_hierarchy"})
	case errors.Is(err, intake.ErrParentMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "parent_mismatch"})
	case errors.Is(err, intake.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &persistErr) && persistErr.Retryable:
		h.logger.WithError(err).Warn("retryable persistence failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// uuidParam parses a path parameter, writing 400 on failure
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
