package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/pkg/models"
)

// ActorHeader identifies the user performing an action
const ActorHeader = "X-Actor-ID"

// IdempotencyHeader carries the webhook delivery id
const IdempotencyHeader = "Idempotency-Key"

// TriageCard handles the intake trigger for a new card. Redeliveries with the
// same Idempotency-Key are acknowledged without running triage again.
func (h *Handler) TriageCard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if key != "" && h.deduper != nil {
		added, err := h.deduper.Add(ctx, "triage:"+id.String(), key)
		if err != nil {
			// a broken deduper must not drop triggers
			h.logger.WithError(err).Warn("idempotency check failed")
		} else if !added {
			c.JSON(http.StatusOK, gin.H{"card_id": id, "duplicate": true})
			return
		}
	}

	res, err := h.engine.Triage(ctx, id)
	if err != nil {
		if key != "" && h.deduper != nil {
			if rerr := h.deduper.Remove(ctx, "triage:"+id.String(), key); rerr != nil {
				h.logger.WithError(rerr).Warn("failed to release idempotency key")
			}
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// AcceptSuggestion applies the stored suggestion for a card
func (h *Handler) AcceptSuggestion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor := strings.TrimSpace(c.GetHeader(ActorHeader))
	if actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ActorHeader + " header is required"})
		return
	}

	res, err := h.engine.Accept(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SetParentInput DTO for re-parenting a card; a null parent_id moves it to the top level
type SetParentInput struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// SetParent moves a card under another card on the same board
func (h *Handler) SetParent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var input SetParentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.engine.Reparent(c.Request.Context(), id, input.ParentID, c.GetHeader(ActorHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// GetCard retrieves a single card by its ID.
func (h *Handler) GetCard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	card, err := h.store.GetCard(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// ListBoardCards lists a board's cards, optionally by intake status
func (h *Handler) ListBoardCards(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	filter := intake.CardFilter{BoardID: id}
	if s := strings.ToUpper(c.Query("intake_status")); s != "" {
		switch status := models.IntakeStatus(s); status {
		case models.IntakeInbox, models.IntakeSuggested, models.IntakePlaced:
			filter.IntakeStatus = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intake_status"})
			return
		}
	}
	if _, err := h.store.GetBoard(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	cards, err := h.store.ListCards(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

// RecountBoard recomputes child counts on a board
func (h *Handler) RecountBoard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	changed, err := h.engine.Recount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board_id": id, "changed": changed})
}
