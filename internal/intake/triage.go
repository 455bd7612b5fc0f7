package intake

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/models"
)

// TriageResult is the suggestion written for a card
type TriageResult struct {
	CardID            uuid.UUID           `json:"card_id"`
	Status            models.IntakeStatus `json:"intake_status"`
	Confidence        float64             `json:"confidence"`
	Summary           string              `json:"summary,omitempty"`
	Labels            []string            `json:"labels,omitempty"`
	SuggestedParentID *uuid.UUID          `json:"suggested_parent_id,omitempty"`
	SuggestedLinks    ResolvedLinks       `json:"suggested_links"`
	AutoApplied       bool                `json:"auto_applied"`
	Fallback          bool                `json:"fallback"`

	// KeptExisting is set when the stored suggestion outranked this run
	KeptExisting bool `json:"kept_existing,omitempty"`

	// AcceptError is set when auto-placement was attempted and failed
	AcceptError string `json:"accept_error,omitempty"`
}

// Triage classifies a card awaiting review and stores the placement suggestion.
// Confidence at or above the suggest threshold moves the card to SUGGESTED; at or above
// the auto-place threshold the suggestion is accepted as SystemActor. A failed
// auto-accept leaves the card SUGGESTED with the suggestion intact.
func (e *Engine) Triage(ctx context.Context, cardID uuid.UUID) (*TriageResult, error) {
	card, err := e.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, persistenceErr("get card", err)
	}
	if !card.IsAwaitingReview() {
		return nil, ErrNotAwaitingReview
	}
	board, err := e.store.GetBoard(ctx, card.BoardID)
	if err != nil {
		return nil, persistenceErr("get board", err)
	}
	candidates, err := e.store.ListCards(ctx, CardFilter{
		WorkspaceID:   board.WorkspaceID,
		ExcludeID:     card.ID,
		ExcludeStatus: models.TaskStatusDone,
	})
	if err != nil {
		return nil, persistenceErr("list candidate parents", err)
	}
	vendors, err := e.store.ListVendors(ctx, board.WorkspaceID, nil)
	if err != nil {
		return nil, persistenceErr("list vendors", err)
	}
	contacts, err := e.store.ListContacts(ctx, board.WorkspaceID, nil)
	if err != nil {
		return nil, persistenceErr("list contacts", err)
	}

	logger := e.logger.WithFields(log.Fields{"card_id": card.ID, "board_id": card.BoardID})

	promptCtx := &llm.PromptContext{}
	for _, c := range candidates {
		promptCtx.CandidateParents = append(promptCtx.CandidateParents, c.Title)
	}
	for _, v := range vendors {
		promptCtx.KnownVendors = append(promptCtx.KnownVendors, v.Name)
	}
	for i := range contacts {
		promptCtx.KnownContacts = append(promptCtx.KnownContacts, contacts[i].FullName())
	}

	content := strings.TrimSpace(card.Title + "\n\n" + card.Description)
	raw, gwErr := e.gateway.Call(ctx, llm.Request{
		Content:    content,
		SchemaHint: llm.Classification,
		Context:    promptCtx,
	})
	rec := NormalizeClassification(raw, gwErr, content, Metadata{})
	switch {
	case gwErr != nil:
		logger.WithError(gwErr).Warn("triage using fallback extraction")
	case rec.Fallback:
		logger.WithError(ErrMalformedExtraction).Warn("triage using fallback extraction")
	}

	if card.IntakeStatus == models.IntakeSuggested && !supersedes(*card, rec) {
		logger.WithFields(log.Fields{
			"confidence":        rec.Confidence,
			"stored_confidence": card.AIConfidence,
			"fallback":          rec.Fallback,
		}).Info("keeping existing suggestion")
		return e.autoPlace(ctx, logger, storedSuggestion(*card)), nil
	}

	var parentID *uuid.UUID
	if rec.ParentTitle != "" {
		parentID, err = e.suggestParent(ctx, logger, *card, candidates, rec.ParentTitle)
		if err != nil {
			return nil, err
		}
	}
	links := ResolveLinks(vendors, contacts, rec.Vendors, rec.Contacts)

	// intake status never moves back to INBOX
	status := models.IntakeInbox
	if rec.Confidence >= e.thresholds.Suggest || card.IntakeStatus == models.IntakeSuggested {
		status = models.IntakeSuggested
	}
	var summary *string
	if rec.Summary != "" {
		summary = &rec.Summary
	}
	confidence := rec.Confidence
	fields := map[string]interface{}{
		"ai_summary":             nullable(summary),
		"ai_labels":              datatypes.JSONSlice[string](rec.Labels),
		"ai_suggested_parent_id": nullable(parentID),
		"ai_suggested_links":     models.Suggest(links.Vendors, links.Contacts),
		"ai_confidence":          confidence,
		"intake_status":          string(status),
	}

	// suggestion fields and status commit together
	err = e.store.RunInTx(ctx, func(tx Store) error {
		ok, err := tx.TransitionCard(ctx, card.ID, models.AwaitingReview, fields)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAwaitingReview
		}
		return tx.AddActivity(ctx, newActivity(card.ID, SystemActor, models.ActivityCardTriaged, map[string]interface{}{
			"confidence":          confidence,
			"intake_status":       status,
			"suggested_parent_id": parentID,
			"suggested_links":     links,
			"fallback":            rec.Fallback,
		}))
	})
	if err != nil {
		return nil, persistenceErr("write suggestion", err)
	}

	return e.autoPlace(ctx, logger, &TriageResult{
		CardID:            card.ID,
		Status:            status,
		Confidence:        confidence,
		Summary:           rec.Summary,
		Labels:            rec.Labels,
		SuggestedParentID: parentID,
		SuggestedLinks:    links,
		Fallback:          rec.Fallback,
	}), nil
}

// autoPlace accepts the suggestion as SystemActor when its confidence clears the
// auto-place threshold. A card placed by someone else in the meantime reports PLACED.
func (e *Engine) autoPlace(ctx context.Context, logger *log.Entry, result *TriageResult) *TriageResult {
	logger = logger.WithFields(log.Fields{"confidence": result.Confidence, "intake_status": result.Status})
	if result.Confidence >= e.thresholds.AutoPlace {
		_, err := e.Accept(ctx, result.CardID, SystemActor)
		switch {
		case err == nil:
			result.AutoApplied = true
			result.Status = models.IntakePlaced
		case errors.Is(err, ErrNotAwaitingReview):
			logger.Info("card already placed, skipping auto-place")
			result.Status = models.IntakePlaced
		default:
			logger.WithError(err).Warn("auto-place failed, leaving suggestion for review")
			result.AcceptError = err.Error()
		}
	}
	logger.WithField("auto_applied", result.AutoApplied).Info("card triaged")
	return result
}

// supersedes reports whether a new run may replace the suggestion stored on a
// SUGGESTED card. Fallback runs never do; others need at least the stored confidence.
func supersedes(card models.Card, rec ClassificationRecord) bool {
	if rec.Fallback {
		return false
	}
	return card.AIConfidence == nil || rec.Confidence >= *card.AIConfidence
}

func storedSuggestion(card models.Card) *TriageResult {
	result := &TriageResult{
		CardID:            card.ID,
		Status:            card.IntakeStatus,
		Labels:            []string(card.AILabels),
		SuggestedParentID: card.AISuggestedParentID,
		SuggestedLinks: ResolvedLinks{
			Vendors:  card.AISuggestedLinks.Vendors,
			Contacts: card.AISuggestedLinks.Contacts,
		},
		KeptExisting: true,
	}
	if card.AIConfidence != nil {
		result.Confidence = *card.AIConfidence
	}
	if card.AISummary != nil {
		result.Summary = *card.AISummary
	}
	return result
}

// suggestParent resolves the model's parent title. Unknown titles, parents on other
// boards and parents that would form a cycle are dropped with a log line.
func (e *Engine) suggestParent(ctx context.Context, logger *log.Entry, card models.Card, candidates []models.Card, title string) (*uuid.UUID, error) {
	parent, err := ResolveParent(card, candidates, title)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.WithFields(log.Fields{"parent_title": title, "reason": "not_found"}).Info("dropping parent suggestion")
		return nil, nil
	case errors.Is(err, ErrParentMismatch):
		logger.WithFields(log.Fields{
			"parent_id":       parent.ID,
			"parent_board_id": parent.BoardID,
			"reason":          "board_mismatch",
		}).Warn("dropping parent suggestion")
		return nil, nil
	}

	err = CheckAncestry(ctx, e.store, card.ID, parent.ID)
	if errors.Is(err, ErrCyclicHierarchy) {
		logger.WithFields(log.Fields{"parent_id": parent.ID, "reason": "cycle"}).Warn("dropping parent suggestion")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &parent.ID, nil
}
