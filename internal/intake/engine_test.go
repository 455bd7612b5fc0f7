package intake_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/models"
	"github.com/kutbudev/boardroom/pkg/repository"
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *repository.Store
	workspace uuid.UUID
	board     *models.Board
	logger    *log.Logger
	hook      *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     repository.NewStore(db),
		workspace: uuid.New(),
		logger:    logger,
		hook:      hook,
	}
	f.board = f.newBoard("Renovation")
	return f
}

func (f *fixture) newBoard(name string) *models.Board {
	f.t.Helper()
	b := &models.Board{WorkspaceID: f.workspace, Name: name}
	require.NoError(f.t, f.store.CreateBoard(f.ctx, b))
	return b
}

func (f *fixture) newCard(board *models.Board, title string, parent *models.Card) *models.Card {
	f.t.Helper()
	c := &models.Card{BoardID: board.ID, Title: title}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(f.t, f.store.CreateCard(f.ctx, c))
	return c
}

func (f *fixture) newVendor(name string) *models.Vendor {
	f.t.Helper()
	v := &models.Vendor{WorkspaceID: f.workspace, Name: name}
	require.NoError(f.t, f.store.CreateVendor(f.ctx, v))
	return v
}

func (f *fixture) newContact(first, last string) *models.Contact {
	f.t.Helper()
	c := &models.Contact{WorkspaceID: f.workspace, FirstName: first, LastName: last}
	require.NoError(f.t, f.store.CreateContact(f.ctx, c))
	return c
}

func (f *fixture) reload(id uuid.UUID) *models.Card {
	f.t.Helper()
	c, err := f.store.GetCard(f.ctx, id)
	require.NoError(f.t, err)
	return c
}

// suggest writes a suggestion straight to the store, the way a prior triage would
func (f *fixture) suggest(card *models.Card, parent *uuid.UUID, vendors, contacts []uuid.UUID) {
	f.t.Helper()
	fields := map[string]interface{}{
		"intake_status":      string(models.IntakeSuggested),
		"ai_suggested_links": models.Suggest(vendors, contacts),
		"ai_confidence":      0.9,
	}
	if parent != nil {
		fields["ai_suggested_parent_id"] = *parent
	}
	require.NoError(f.t, f.store.UpdateCard(f.ctx, card.ID, fields))
}

// engine answers every gateway call with reply
func (f *fixture) engine(reply string, opts ...intake.Option) *intake.Engine {
	provider := llm.ProviderFunc(func(ctx context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
		return reply, nil
	})
	return f.engineWith(provider, opts...)
}

func (f *fixture) engineWith(provider llm.Provider, opts ...intake.Option) *intake.Engine {
	gw := llm.NewGateway(provider, time.Second, f.logger)
	opts = append([]intake.Option{intake.WithLogger(f.logger)}, opts...)
	return intake.NewEngine(f.store, gw, opts...)
}

func (f *fixture) engineOn(store intake.Store, reply string) *intake.Engine {
	provider := llm.ProviderFunc(func(ctx context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
		return reply, nil
	})
	gw := llm.NewGateway(provider, time.Second, f.logger)
	return intake.NewEngine(store, gw, intake.WithLogger(f.logger))
}

// hasLog reports whether a log entry at level carries field=value
func (f *fixture) hasLog(level log.Level, field string, value interface{}) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Level == level && e.Data[field] == value {
			return true
		}
	}
	return false
}

func triageReply(confidence float64, parent string, vendors, contacts []string) string {
	quote := func(items []string) string {
		q := make([]string, len(items))
		for i, s := range items {
			q[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(q, ",") + "]"
	}
	return fmt.Sprintf(`{"type":"task","summary":"Needs a plumber","labels":["Plumbing"],"parent":%q,"vendors":%s,"contacts":%s,"confidence":%v}`,
		parent, quote(vendors), quote(contacts), confidence)
}
