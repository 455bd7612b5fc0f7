package intake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kutbudev/boardroom/pkg/models"
)

// CardFilter narrows ListCards. Zero values are ignored.
type CardFilter struct {
	BoardID       uuid.UUID
	WorkspaceID   uuid.UUID
	ExcludeID     uuid.UUID
	ExcludeStatus models.TaskStatus
	IntakeStatus  models.IntakeStatus
	CreatedAfter  time.Time
	Limit         int
}

// Store is the persistence boundary used by the intake pipeline.
// Single-row operations are atomic; RunInTx composes them all-or-nothing.
type Store interface {
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, filter CardFilter) ([]models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// TransitionCard applies fields only while the card's intake status is one of from.
	// It reports whether the row was updated.
	TransitionCard(ctx context.Context, id uuid.UUID, from []models.IntakeStatus, fields map[string]interface{}) (bool, error)
	CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error)

	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	// HasWorkspace reports whether any board belongs to the workspace
	HasWorkspace(ctx context.Context, workspaceID uuid.UUID) (bool, error)

	// ListVendors and ListContacts return every row in the workspace when ids is nil.
	ListVendors(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]models.Vendor, error)
	ListContacts(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]models.Contact, error)
	CreateVendor(ctx context.Context, vendor *models.Vendor) error
	CreateContact(ctx context.Context, contact *models.Contact) error
	MarkContactsVendor(ctx context.Context, ids []uuid.UUID) error
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ReplaceCardLinks deletes every link of entityType for the card, then inserts ids.
	ReplaceCardLinks(ctx context.Context, cardID uuid.UUID, entityType models.EntityType, ids []uuid.UUID) error
	ListCardLinks(ctx context.Context, cardID uuid.UUID) ([]models.CardLink, error)

	AddActivity(ctx context.Context, activity *models.Activity) error

	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
