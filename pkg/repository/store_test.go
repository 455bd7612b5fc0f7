package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/pkg/config"
	"github.com/kutbudev/boardroom/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDatabase(&config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db)
}

func seedBoard(t *testing.T, s *Store, workspace uuid.UUID) *models.Board {
	t.Helper()
	b := &models.Board{WorkspaceID: workspace, Name: "board"}
	require.NoError(t, s.CreateBoard(context.Background(), b))
	return b
}

func TestGetCardNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, intake.ErrNotFound)

	_, err = s.GetBoard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, intake.ErrNotFound)

	err = s.UpdateCard(context.Background(), uuid.New(), map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, intake.ErrNotFound)
}

func TestCardDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedBoard(t, s, uuid.New())

	card := &models.Card{BoardID: b.ID, Title: "Fix leak"}
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusTODO, got.Status)
	assert.Equal(t, models.TaskPriorityMedium, got.Priority)
	assert.Equal(t, models.IntakeInbox, got.IntakeStatus)
	assert.Equal(t, models.LinksNone, got.AISuggestedLinks.State)
	assert.Nil(t, got.AIConfidence)
}

func TestSuggestedLinksTriState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedBoard(t, s, uuid.New())
	card := &models.Card{BoardID: b.ID, Title: "Fix leak"}
	require.NoError(t, s.CreateCard(ctx, card))

	vendor := uuid.New()
	require.NoError(t, s.UpdateCard(ctx, card.ID, map[string]interface{}{
		"ai_suggested_links": models.Suggest([]uuid.UUID{vendor}, nil),
	}))
	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LinksSuggested, got.AISuggestedLinks.State)
	assert.Equal(t, []uuid.UUID{vendor}, got.AISuggestedLinks.Vendors)

	require.NoError(t, s.UpdateCard(ctx, card.ID, map[string]interface{}{
		"ai_suggested_links": models.ClearedSuggestion(),
	}))
	got, err = s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LinksCleared, got.AISuggestedLinks.State)

	var raw sql.NullString
	require.NoError(t, s.DB().Raw("SELECT ai_suggested_links FROM cards WHERE id = ?", card.ID).Row().Scan(&raw))
	require.True(t, raw.Valid, "cleared is the JSON null literal, not SQL NULL")
	assert.Equal(t, "null", raw.String)
}

func TestTransitionCard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedBoard(t, s, uuid.New())
	card := &models.Card{BoardID: b.ID, Title: "Fix leak"}
	require.NoError(t, s.CreateCard(ctx, card))

	placed := map[string]interface{}{"intake_status": string(models.IntakePlaced)}
	ok, err := s.TransitionCard(ctx, card.ID, models.AwaitingReview, placed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionCard(ctx, card.ID, models.AwaitingReview, placed)
	require.NoError(t, err)
	assert.False(t, ok, "precondition no longer holds")
}

func TestListCardsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ws := uuid.New()
	b1 := seedBoard(t, s, ws)
	b2 := seedBoard(t, s, ws)
	foreign := seedBoard(t, s, uuid.New())

	keep := &models.Card{BoardID: b1.ID, Title: "keep"}
	done := &models.Card{BoardID: b1.ID, Title: "done", Status: models.TaskStatusDone}
	sibling := &models.Card{BoardID: b2.ID, Title: "sibling"}
	outside := &models.Card{BoardID: foreign.ID, Title: "outside"}
	for _, c := range []*models.Card{keep, done, sibling, outside} {
		require.NoError(t, s.CreateCard(ctx, c))
	}

	cards, err := s.ListCards(ctx, intake.CardFilter{BoardID: b1.ID, ExcludeStatus: models.TaskStatusDone})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, keep.ID, cards[0].ID)

	cards, err = s.ListCards(ctx, intake.CardFilter{WorkspaceID: ws, ExcludeID: keep.ID})
	require.NoError(t, err)
	assert.Len(t, cards, 2, "done and sibling")

	cards, err = s.ListCards(ctx, intake.CardFilter{BoardID: b1.ID, CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, cards)

	cards, err = s.ListCards(ctx, intake.CardFilter{WorkspaceID: ws, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestReplaceCardLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedBoard(t, s, uuid.New())
	c := &models.Card{BoardID: b.ID, Title: "Fix leak"}
	require.NoError(t, s.CreateCard(ctx, c))
	card := c.ID
	v1, v2, c1 := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, s.ReplaceCardLinks(ctx, card, models.EntityVendor, []uuid.UUID{v1}))
	require.NoError(t, s.ReplaceCardLinks(ctx, card, models.EntityContact, []uuid.UUID{c1}))
	require.NoError(t, s.ReplaceCardLinks(ctx, card, models.EntityVendor, []uuid.UUID{v2}))

	links, err := s.ListCardLinks(ctx, card)
	require.NoError(t, err)
	require.Len(t, links, 2)
	got := map[models.EntityType]uuid.UUID{}
	for _, l := range links {
		got[l.EntityType] = l.EntityID
	}
	assert.Equal(t, v2, got[models.EntityVendor])
	assert.Equal(t, c1, got[models.EntityContact])

	require.NoError(t, s.ReplaceCardLinks(ctx, card, models.EntityVendor, nil))
	links, err = s.ListCardLinks(ctx, card)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestListEntitiesByWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ws := uuid.New()

	mine := &models.Vendor{WorkspaceID: ws, Name: "Acme"}
	theirs := &models.Vendor{WorkspaceID: uuid.New(), Name: "Other"}
	require.NoError(t, s.CreateVendor(ctx, mine))
	require.NoError(t, s.CreateVendor(ctx, theirs))

	vendors, err := s.ListVendors(ctx, ws, nil)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, mine.ID, vendors[0].ID)

	vendors, err = s.ListVendors(ctx, ws, []uuid.UUID{theirs.ID})
	require.NoError(t, err)
	assert.Empty(t, vendors, "ids outside the workspace are not visible")

	vendors, err = s.ListVendors(ctx, ws, []uuid.UUID{})
	require.NoError(t, err)
	assert.Empty(t, vendors)

	contact := &models.Contact{WorkspaceID: ws, FirstName: "Ada"}
	require.NoError(t, s.CreateContact(ctx, contact))
	require.NoError(t, s.MarkContactsVendor(ctx, []uuid.UUID{contact.ID}))
	contacts, err := s.ListContacts(ctx, ws, []uuid.UUID{contact.ID})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.True(t, contacts[0].IsVendor)
}

func TestRunInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedBoard(t, s, uuid.New())
	card := &models.Card{BoardID: b.ID, Title: "Fix leak"}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx intake.Store) error {
		if err := tx.CreateCard(ctx, card); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, intake.ErrNotFound)
}

func TestActivityIDsSortByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := uuid.New()
	for _, kind := range []string{models.ActivityCardCreated, models.ActivityCardTriaged, models.ActivitySuggestionAccepted} {
		require.NoError(t, s.AddActivity(ctx, &models.Activity{CardID: card, ActorID: "u", Kind: kind}))
		time.Sleep(2 * time.Millisecond)
	}
	activities, err := s.ListActivities(ctx, card)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	assert.Equal(t, models.ActivityCardCreated, activities[0].Kind)
	assert.Equal(t, models.ActivitySuggestionAccepted, activities[2].Kind)
	assert.Equal(t, "{}", string(activities[0].Payload))
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(gorm.ErrRecordNotFound), intake.ErrNotFound)

	var re intake.RetryableError
	err := mapErr(&pq.Error{Code: "40001"})
	require.True(t, errors.As(err, &re))
	assert.True(t, re.Retryable())

	err = mapErr(&pq.Error{Code: "40P01"})
	assert.True(t, errors.As(err, &re))

	err = mapErr(&pq.Error{Code: "23505"})
	assert.False(t, errors.As(err, &re))
}

func TestHasWorkspace(t *testing.T) {
	s := newTestStore(t)
	ws := uuid.New()
	seedBoard(t, s, ws)

	ok, err := s.HasWorkspace(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasWorkspace(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
