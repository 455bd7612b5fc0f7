package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"github.com/kutbudev/boardroom/pkg/models"
)

// AcceptResult reports an applied suggestion
type AcceptResult struct {
	Success  bool        `json:"success"`
	CardID   uuid.UUID   `json:"card_id"`
	ParentID *uuid.UUID  `json:"parent_id"`
	Vendors  []uuid.UUID `json:"vendors"`
	Contacts []uuid.UUID `json:"contacts"`
}

// Accept applies a card's suggestion in one transaction:
//  1. the card must be INBOX or SUGGESTED
//  2. the suggested parent is re-checked: missing or cross-board parents are dropped,
//     a cycle fails the whole accept
//  3. suggested vendor and contact IDs are re-checked against the workspace
//  4. the card moves to PLACED and its suggestion fields are cleared
//  5. VENDOR and CONTACT links are replaced by the suggested sets
//  6. child counts of the old and new parent are recomputed
//  7. a suggestion.accepted activity is recorded
//
// Concurrent accepts of the same card succeed once; the others get ErrNotAwaitingReview.
func (e *Engine) Accept(ctx context.Context, cardID uuid.UUID, actorID string) (*AcceptResult, error) {
	if actorID == "" {
		actorID = SystemActor
	}
	ctx, span := otel.Tracer("github.com/kutbudev/boardroom/internal/intake").Start(ctx, "intake.accept")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID.String()), attribute.String("actor.id", actorID))
	logger := e.logger.WithFields(log.Fields{"card_id": cardID, "actor_id": actorID})

	var result *AcceptResult
	err := e.store.RunInTx(ctx, func(tx Store) error {
		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if !card.IsAwaitingReview() {
			return ErrNotAwaitingReview
		}
		board, err := tx.GetBoard(ctx, card.BoardID)
		if err != nil {
			return err
		}

		oldParent := card.ParentID
		newParent := card.ParentID
		if card.AISuggestedParentID != nil {
			ok, err := e.validateSuggestedParent(ctx, tx, logger, card, *card.AISuggestedParentID)
			if err != nil {
				return err
			}
			if ok {
				id := *card.AISuggestedParentID
				newParent = &id
			}
		}

		links := card.AISuggestedLinks
		var vendorIDs, contactIDs, promote []uuid.UUID
		if links.State == models.LinksSuggested {
			vendorIDs, contactIDs, promote, err = validateLinks(ctx, tx, board.WorkspaceID, links)
			if err != nil {
				return err
			}
		}

		ok, err := tx.TransitionCard(ctx, card.ID, models.AwaitingReview, map[string]interface{}{
			"parent_id":              nullable(newParent),
			"intake_status":          string(models.IntakePlaced),
			"ai_summary":             nil,
			"ai_labels":              datatypes.JSONSlice[string](nil),
			"ai_suggested_parent_id": nil,
			"ai_suggested_links":     models.ClearedSuggestion(),
			"ai_confidence":          nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			// another accept committed first
			return ErrNotAwaitingReview
		}

		if links.State == models.LinksSuggested {
			if len(promote) > 0 {
				if err := tx.MarkContactsVendor(ctx, promote); err != nil {
					return err
				}
			}
			if err := tx.ReplaceCardLinks(ctx, card.ID, models.EntityVendor, vendorIDs); err != nil {
				return err
			}
			if err := tx.ReplaceCardLinks(ctx, card.ID, models.EntityContact, contactIDs); err != nil {
				return err
			}
		}

		if err := recountParents(ctx, tx, oldParent, newParent); err != nil {
			return err
		}

		if err := tx.AddActivity(ctx, newActivity(card.ID, actorID, models.ActivitySuggestionAccepted, map[string]interface{}{
			"previous_parent_id": oldParent,
			"parent_id":          newParent,
			"summary":            card.AISummary,
			"labels":             card.AILabels,
			"confidence":         card.AIConfidence,
			"vendors":            vendorIDs,
			"contacts":           contactIDs,
		})); err != nil {
			return err
		}

		result = &AcceptResult{
			Success:  true,
			CardID:   card.ID,
			ParentID: newParent,
			Vendors:  vendorIDs,
			Contacts: contactIDs,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotAwaitingReview) {
			logger.Info("accept skipped: card is not awaiting review")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.WithError(err).Error("accept failed")
		}
		return nil, persistenceErr("accept suggestion", err)
	}

	logger.WithField("parent_id", result.ParentID).Info("suggestion accepted")
	return result, nil
}

// validateSuggestedParent reports whether the suggested parent can be applied.
// Missing and cross-board parents are dropped; a cycle is an error.
func (e *Engine) validateSuggestedParent(ctx context.Context, tx Store, logger *log.Entry, card *models.Card, parentID uuid.UUID) (bool, error) {
	parent, err := tx.GetCard(ctx, parentID)
	if errors.Is(err, ErrNotFound) {
		logger.WithFields(log.Fields{"parent_id": parentID, "reason": "not_found"}).Warn("dropping suggested parent")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if parent.BoardID != card.BoardID {
		logger.WithError(ErrParentMismatch).WithFields(log.Fields{
			"parent_id":       parentID,
			"parent_board_id": parent.BoardID,
			"reason":          "board_mismatch",
		}).Warn("dropping suggested parent")
		return false, nil
	}
	if err := CheckAncestry(ctx, tx, card.ID, parentID); err != nil {
		return false, err
	}
	return true, nil
}

// validateLinks keeps suggested IDs that still exist in the workspace. Vendor IDs that
// name a contact are linked as vendors and returned in promote.
func validateLinks(ctx context.Context, tx Store, workspaceID uuid.UUID, links models.SuggestedLinks) (vendorIDs, contactIDs, promote []uuid.UUID, err error) {
	if len(links.Vendors) > 0 {
		vendors, err := tx.ListVendors(ctx, workspaceID, links.Vendors)
		if err != nil {
			return nil, nil, nil, err
		}
		found := make(map[uuid.UUID]bool, len(vendors))
		for _, v := range vendors {
			found[v.ID] = true
		}
		var rest []uuid.UUID
		for _, id := range links.Vendors {
			if !found[id] {
				rest = append(rest, id)
			}
		}
		if len(rest) > 0 {
			contacts, err := tx.ListContacts(ctx, workspaceID, rest)
			if err != nil {
				return nil, nil, nil, err
			}
			for _, c := range contacts {
				found[c.ID] = true
				if !c.IsVendor {
					promote = append(promote, c.ID)
				}
			}
		}
		vendorIDs = keepOrdered(links.Vendors, found)
	}
	if len(links.Contacts) > 0 {
		contacts, err := tx.ListContacts(ctx, workspaceID, links.Contacts)
		if err != nil {
			return nil, nil, nil, err
		}
		found := make(map[uuid.UUID]bool, len(contacts))
		for _, c := range contacts {
			found[c.ID] = true
		}
		contactIDs = keepOrdered(links.Contacts, found)
	}
	return vendorIDs, contactIDs, promote, nil
}

func keepOrdered(ids []uuid.UUID, keep map[uuid.UUID]bool) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if keep[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// recountParents recomputes child counts for each distinct non-nil parent
func recountParents(ctx context.Context, tx Store, parents ...*uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(parents))
	for _, p := range parents {
		if p == nil || seen[*p] {
			continue
		}
		seen[*p] = true
		if err := recountParent(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func recountParent(ctx context.Context, tx Store, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	n, err := tx.CountChildren(ctx, *parentID)
	if err != nil {
		return err
	}
	err = tx.UpdateCard(ctx, *parentID, map[string]interface{}{
		"child_count":  n,
		"has_children": n > 0,
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Reparent moves a card under parentID, or to the top level when parentID is nil.
// The parent must be on the same board and must not be a descendant of the card.
func (e *Engine) Reparent(ctx context.Context, cardID uuid.UUID, parentID *uuid.UUID, actorID string) (*models.Card, error) {
	var updated *models.Card
	err := e.store.RunInTx(ctx, func(tx Store) error {
		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if parentID != nil {
			parent, err := tx.GetCard(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent.BoardID != card.BoardID {
				return ErrParentMismatch
			}
			if err := CheckAncestry(ctx, tx, card.ID, parent.ID); err != nil {
				return err
			}
		}
		oldParent := card.ParentID
		if err := tx.UpdateCard(ctx, card.ID, map[string]interface{}{"parent_id": nullable(parentID)}); err != nil {
			return err
		}
		if err := recountParents(ctx, tx, oldParent, parentID); err != nil {
			return err
		}
		if err := tx.AddActivity(ctx, newActivity(card.ID, actorID, models.ActivityCardReparented, map[string]interface{}{
			"previous_parent_id": oldParent,
			"parent_id":          parentID,
		})); err != nil {
			return err
		}
		updated, err = tx.GetCard(ctx, card.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrParentMismatch) {
			return nil, err
		}
		return nil, persistenceErr("reparent card", err)
	}
	e.logger.WithFields(log.Fields{"card_id": cardID, "parent_id": parentID}).Info("card reparented")
	return updated, nil
}

// Recount recomputes child_count and has_children for every card on a board
// and returns how many cards changed.
func (e *Engine) Recount(ctx context.Context, boardID uuid.UUID) (int, error) {
	changed := 0
	err := e.store.RunInTx(ctx, func(tx Store) error {
		cards, err := tx.ListCards(ctx, CardFilter{BoardID: boardID})
		if err != nil {
			return err
		}
		counts := make(map[uuid.UUID]int, len(cards))
		for _, c := range cards {
			if c.ParentID != nil {
				counts[*c.ParentID]++
			}
		}
		for _, c := range cards {
			n := counts[c.ID]
			if c.ChildCount == n && c.HasChildren == (n > 0) {
				continue
			}
			if err := tx.UpdateCard(ctx, c.ID, map[string]interface{}{
				"child_count":  n,
				"has_children": n > 0,
			}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, persistenceErr("recount children", err)
	}
	e.logger.WithFields(log.Fields{"board_id": boardID, "changed": changed}).Info("child counts recomputed")
	return changed, nil
}
