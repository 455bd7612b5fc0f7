package intake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/models"
)

func TestTriageThresholdGating(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantStatus models.IntakeStatus
		autoPlaced bool
	}{
		{"below suggest threshold", 0.80, models.IntakeInbox, false},
		{"suggested", 0.88, models.IntakeSuggested, false},
		{"auto placed", 0.95, models.IntakePlaced, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			parent := f.newCard(f.board, "Kitchen remodel", nil)
			vendor := f.newVendor("Acme Plumbing")
			contact := f.newContact("Ada", "Lovelace")
			card := f.newCard(f.board, "Fix leak under sink", nil)

			e := f.engine(triageReply(tt.confidence, "Kitchen remodel", []string{"Acme Plumbing"}, []string{"Ada Lovelace"}))
			res, err := e.Triage(f.ctx, card.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.autoPlaced, res.AutoApplied)
			assert.Empty(t, res.AcceptError)

			got := f.reload(card.ID)
			assert.Equal(t, tt.wantStatus, got.IntakeStatus)

			links, err := f.store.ListCardLinks(f.ctx, card.ID)
			require.NoError(t, err)

			if !tt.autoPlaced {
				require.NotNil(t, got.AIConfidence)
				assert.InDelta(t, tt.confidence, *got.AIConfidence, 1e-9)
				require.NotNil(t, got.AISummary)
				assert.Equal(t, "Needs a plumber", *got.AISummary)
				assert.Equal(t, []string{"plumbing"}, []string(got.AILabels))
				require.NotNil(t, got.AISuggestedParentID)
				assert.Equal(t, parent.ID, *got.AISuggestedParentID)
				assert.Equal(t, models.LinksSuggested, got.AISuggestedLinks.State)
				assert.Equal(t, []uuid.UUID{vendor.ID}, got.AISuggestedLinks.Vendors)
				assert.Equal(t, []uuid.UUID{contact.ID}, got.AISuggestedLinks.Contacts)
				assert.Nil(t, got.ParentID)
				assert.Empty(t, links)
				return
			}

			require.NotNil(t, got.ParentID)
			assert.Equal(t, parent.ID, *got.ParentID)
			assert.Nil(t, got.AIConfidence)
			assert.Nil(t, got.AISummary)
			assert.Nil(t, got.AISuggestedParentID)
			assert.Empty(t, got.AILabels)
			assert.Equal(t, models.LinksCleared, got.AISuggestedLinks.State)
			assert.ElementsMatch(t, []models.CardLink{
				{CardID: card.ID, EntityType: models.EntityVendor, EntityID: vendor.ID},
				{CardID: card.ID, EntityType: models.EntityContact, EntityID: contact.ID},
			}, stripLinkTimes(links))

			p := f.reload(parent.ID)
			assert.Equal(t, 1, p.ChildCount)
			assert.True(t, p.HasChildren)
		})
	}
}

func stripLinkTimes(links []models.CardLink) []models.CardLink {
	out := make([]models.CardLink, len(links))
	for i, l := range links {
		out[i] = models.CardLink{CardID: l.CardID, EntityType: l.EntityType, EntityID: l.EntityID}
	}
	return out
}

func TestTriageParentOnOtherBoardIsDropped(t *testing.T) {
	f := newFixture(t)
	other := f.newBoard("Garden")
	f.newCard(other, "Landscaping", nil)
	card := f.newCard(f.board, "Buy mulch", nil)

	e := f.engine(triageReply(0.93, "Landscaping", nil, nil))
	res, err := e.Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, res.AutoApplied)
	assert.Nil(t, res.SuggestedParentID)

	got := f.reload(card.ID)
	assert.Equal(t, models.IntakePlaced, got.IntakeStatus)
	assert.Nil(t, got.ParentID)
	assert.True(t, f.hasLog(log.WarnLevel, "reason", "board_mismatch"))
}

func TestTriageUnknownParentIsDropped(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Buy mulch", nil)

	res, err := f.engine(triageReply(0.88, "No such card", nil, nil)).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Nil(t, res.SuggestedParentID)
	assert.True(t, f.hasLog(log.InfoLevel, "reason", "not_found"))
}

func TestTriageCyclicParentIsDropped(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Phase one", nil)
	child := f.newCard(f.board, "Phase one prep", card)

	res, err := f.engine(triageReply(0.88, child.Title, nil, nil)).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Nil(t, res.SuggestedParentID)
	assert.True(t, f.hasLog(log.WarnLevel, "reason", "cycle"))
}

func TestTriageGatewayFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Estimate #42 for fence", nil)

	provider := llm.ProviderFunc(func(ctx context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
		return "", errors.New("connection refused")
	})
	res, err := f.engineWith(provider).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, models.IntakeInbox, res.Status)

	got := f.reload(card.ID)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, intake.FallbackConfidence, *got.AIConfidence, 1e-9)
	assert.Equal(t, models.LinksSuggested, got.AISuggestedLinks.State)
}

func TestTriageRejectsPlacedCard(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Done deal", nil)
	require.NoError(t, f.store.UpdateCard(f.ctx, card.ID, map[string]interface{}{"intake_status": string(models.IntakePlaced)}))

	_, err := f.engine(triageReply(0.9, "", nil, nil)).Triage(f.ctx, card.ID)
	assert.ErrorIs(t, err, intake.ErrNotAwaitingReview)

	_, err = f.engine("").Triage(f.ctx, uuid.New())
	assert.ErrorIs(t, err, intake.ErrNotFound)
}

func TestTriageCustomThresholds(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Fix leak", nil)

	e := f.engine(triageReply(0.7, "", nil, nil), intake.WithThresholds(intake.Thresholds{Suggest: 0.6, AutoPlace: 0.99}))
	res, err := e.Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeSuggested, res.Status)
}

// failingLinks fails every link replacement, which only accept performs
type failingLinks struct {
	intake.Store
}

func (s failingLinks) ReplaceCardLinks(context.Context, uuid.UUID, models.EntityType, []uuid.UUID) error {
	return errors.New("disk full")
}

func (s failingLinks) RunInTx(ctx context.Context, fn func(tx intake.Store) error) error {
	return s.Store.RunInTx(ctx, func(tx intake.Store) error {
		return fn(failingLinks{tx})
	})
}

func TestTriageAutoApplyFailureKeepsSuggestion(t *testing.T) {
	f := newFixture(t)
	parent := f.newCard(f.board, "Kitchen remodel", nil)
	card := f.newCard(f.board, "Fix leak", nil)

	e := f.engineOn(failingLinks{f.store}, triageReply(0.97, "Kitchen remodel", nil, nil))
	res, err := e.Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.False(t, res.AutoApplied)
	assert.Equal(t, models.IntakeSuggested, res.Status)
	assert.NotEmpty(t, res.AcceptError)

	got := f.reload(card.ID)
	assert.Equal(t, models.IntakeSuggested, got.IntakeStatus)
	require.NotNil(t, got.AISuggestedParentID)
	assert.Equal(t, parent.ID, *got.AISuggestedParentID)
	require.NotNil(t, got.AIConfidence)
	assert.Nil(t, got.ParentID, "rolled back")
	assert.True(t, f.hasLog(log.WarnLevel, "intake_status", models.IntakeSuggested))
}

func TestRetriageKeepsSuggestionWhenGatewayDown(t *testing.T) {
	f := newFixture(t)
	parent := f.newCard(f.board, "Kitchen remodel", nil)
	vendor := f.newVendor("Acme Plumbing")
	card := f.newCard(f.board, "Fix leak under sink", nil)

	_, err := f.engine(triageReply(0.88, "Kitchen remodel", []string{"Acme Plumbing"}, nil)).Triage(f.ctx, card.ID)
	require.NoError(t, err)

	down := llm.ProviderFunc(func(ctx context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
		return "", errors.New("upstream 503")
	})
	res, err := f.engineWith(down).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, res.KeptExisting)
	assert.Equal(t, models.IntakeSuggested, res.Status)
	assert.InDelta(t, 0.88, res.Confidence, 1e-9)
	require.NotNil(t, res.SuggestedParentID)
	assert.Equal(t, parent.ID, *res.SuggestedParentID)

	got := f.reload(card.ID)
	assert.Equal(t, models.IntakeSuggested, got.IntakeStatus)
	require.NotNil(t, got.AISuggestedParentID)
	assert.Equal(t, parent.ID, *got.AISuggestedParentID)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, 0.88, *got.AIConfidence, 1e-9)
	assert.Equal(t, []uuid.UUID{vendor.ID}, got.AISuggestedLinks.Vendors)
	assert.True(t, f.hasLog(log.InfoLevel, "fallback", true))
}

func TestRetriageOrdering(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantParent string
		wantConf   float64
		kept       bool
	}{
		{"lower confidence keeps stored", 0.80, "Kitchen remodel", 0.88, true},
		{"equal confidence replaces", 0.88, "Bathroom", 0.88, false},
		{"higher confidence replaces", 0.90, "Bathroom", 0.90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			parents := map[string]*models.Card{
				"Kitchen remodel": f.newCard(f.board, "Kitchen remodel", nil),
				"Bathroom":        f.newCard(f.board, "Bathroom", nil),
			}
			card := f.newCard(f.board, "Fix leak", nil)

			_, err := f.engine(triageReply(0.88, "Kitchen remodel", nil, nil)).Triage(f.ctx, card.ID)
			require.NoError(t, err)

			res, err := f.engine(triageReply(tt.confidence, "Bathroom", nil, nil)).Triage(f.ctx, card.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.kept, res.KeptExisting)
			assert.Equal(t, models.IntakeSuggested, res.Status)

			got := f.reload(card.ID)
			assert.Equal(t, models.IntakeSuggested, got.IntakeStatus)
			require.NotNil(t, got.AISuggestedParentID)
			assert.Equal(t, parents[tt.wantParent].ID, *got.AISuggestedParentID)
			require.NotNil(t, got.AIConfidence)
			assert.InDelta(t, tt.wantConf, *got.AIConfidence, 1e-9)
		})
	}
}

func TestRetriageNeverDemotesSuggested(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Fix leak", nil)

	e := f.engine(triageReply(0.7, "", nil, nil), intake.WithThresholds(intake.Thresholds{Suggest: 0.6, AutoPlace: 0.99}))
	_, err := e.Triage(f.ctx, card.ID)
	require.NoError(t, err)

	// default thresholds would put 0.75 in INBOX
	res, err := f.engine(triageReply(0.75, "", nil, nil)).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.False(t, res.KeptExisting)
	assert.Equal(t, models.IntakeSuggested, res.Status)
	assert.Equal(t, models.IntakeSuggested, f.reload(card.ID).IntakeStatus)
}

func TestTriageUnreadableConfidenceStaysInInbox(t *testing.T) {
	f := newFixture(t)
	card := f.newCard(f.board, "Fix leak", nil)

	reply := `{"type":"task","summary":"Needs a plumber","confidence":"high"}`
	res, err := f.engine(reply).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeInbox, res.Status)
	assert.InDelta(t, intake.FallbackConfidence, res.Confidence, 1e-9)
}

// acceptsFirst lets a reviewer accept the card right after the suggestion write commits
type acceptsFirst struct {
	intake.Store
	calls  *int
	accept func()
}

func (s acceptsFirst) RunInTx(ctx context.Context, fn func(tx intake.Store) error) error {
	err := s.Store.RunInTx(ctx, fn)
	*s.calls++
	if *s.calls == 1 && err == nil {
		s.accept()
	}
	return err
}

func TestTriageAutoPlaceAfterConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	f.newCard(f.board, "Kitchen remodel", nil)
	card := f.newCard(f.board, "Fix leak", nil)

	var calls int
	store := acceptsFirst{Store: f.store, calls: &calls, accept: func() {
		_, err := f.engine("").Accept(f.ctx, card.ID, "user:reviewer")
		require.NoError(t, err)
	}}
	res, err := f.engineOn(store, triageReply(0.97, "Kitchen remodel", nil, nil)).Triage(f.ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakePlaced, res.Status)
	assert.False(t, res.AutoApplied)
	assert.Empty(t, res.AcceptError)
	assert.Equal(t, models.IntakePlaced, f.reload(card.ID).IntakeStatus)
}
