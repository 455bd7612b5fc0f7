package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/pkg/models"
)

// Store implements intake.Store on gorm
type Store struct {
	db *gorm.DB
}

var _ intake.Store = (*Store)(nil)

// NewStore wraps an open database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for reads outside the intake pipeline
func (s *Store) DB() *gorm.DB {
	return s.db
}

// retryableError marks serialization failures and deadlocks
type retryableError struct {
	err error
}

func (e *retryableError) Error() string   { return e.err.Error() }
func (e *retryableError) Unwrap() error   { return e.err }
func (e *retryableError) Retryable() bool { return true }

// mapErr translates driver errors into intake errors
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return intake.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return &retryableError{err: err}
		}
	}
	return err
}

func statuses(in []models.IntakeStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := s.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &card, nil
}

func (s *Store) ListCards(ctx context.Context, filter intake.CardFilter) ([]models.Card, error) {
	q := s.db.WithContext(ctx).Model(&models.Card{})
	if filter.BoardID != uuid.Nil {
		q = q.Where("board_id = ?", filter.BoardID)
	}
	if filter.WorkspaceID != uuid.Nil {
		boards := s.db.Model(&models.Board{}).Select("id").Where("workspace_id = ?", filter.WorkspaceID)
		q = q.Where("board_id IN (?)", boards)
	}
	if filter.ExcludeID != uuid.Nil {
		q = q.Where("id <> ?", filter.ExcludeID)
	}
	if filter.ExcludeStatus != "" {
		q = q.Where("status <> ?", string(filter.ExcludeStatus))
	}
	if filter.IntakeStatus != "" {
		q = q.Where("intake_status = ?", string(filter.IntakeStatus))
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", filter.CreatedAfter)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var cards []models.Card
	if err := q.Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, mapErr(err)
	}
	return cards, nil
}

func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	return mapErr(s.db.WithContext(ctx).Create(card).Error)
}

// UpdateCard returns intake.ErrNotFound when no row matches
func (s *Store) UpdateCard(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return intake.ErrNotFound
	}
	return nil
}

// TransitionCard is a conditional update; the first committer wins
func (s *Store) TransitionCard(ctx context.Context, id uuid.UUID, from []models.IntakeStatus, fields map[string]interface{}) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("id = ? AND intake_status IN ?", id, statuses(from)).
		Updates(fields)
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).Where("parent_id = ?", parentID).Count(&n).Error
	return n, mapErr(err)
}

func (s *Store) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &board, nil
}

func (s *Store) HasWorkspace(ctx context.Context, workspaceID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Board{}).Where("workspace_id = ?", workspaceID).Count(&n).Error
	return n > 0, mapErr(err)
}

// CreateBoard is used by seeding and tests; boards are otherwise managed elsewhere
func (s *Store) CreateBoard(ctx context.Context, board *models.Board) error {
	return mapErr(s.db.WithContext(ctx).Create(board).Error)
}

func (s *Store) ListVendors(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]models.Vendor, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		q = q.Where("id IN ?", ids)
	}
	var vendors []models.Vendor
	if err := q.Order("name").Find(&vendors).Error; err != nil {
		return nil, mapErr(err)
	}
	return vendors, nil
}

func (s *Store) ListContacts(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]models.Contact, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		q = q.Where("id IN ?", ids)
	}
	var contacts []models.Contact
	if err := q.Order("first_name, last_name").Find(&contacts).Error; err != nil {
		return nil, mapErr(err)
	}
	return contacts, nil
}

func (s *Store) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	return mapErr(s.db.WithContext(ctx).Create(vendor).Error)
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	return mapErr(s.db.WithContext(ctx).Create(contact).Error)
}

func (s *Store) MarkContactsVendor(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id IN ?", ids).Update("is_vendor", true).Error
	return mapErr(err)
}

func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return mapErr(s.db.WithContext(ctx).Create(expense).Error)
}

// ReplaceCardLinks leaves exactly ids linked for entityType
func (s *Store) ReplaceCardLinks(ctx context.Context, cardID uuid.UUID, entityType models.EntityType, ids []uuid.UUID) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("card_id = ? AND entity_type = ?", cardID, string(entityType)).
		Delete(&models.CardLink{}).Error; err != nil {
		return mapErr(err)
	}
	if len(ids) == 0 {
		return nil
	}
	links := make([]models.CardLink, 0, len(ids))
	for _, id := range ids {
		links = append(links, models.CardLink{CardID: cardID, EntityType: entityType, EntityID: id})
	}
	if err := db.Create(&links).Error; err != nil {
		return fmt.Errorf("insert %s links: %w", entityType, mapErr(err))
	}
	return nil
}

func (s *Store) ListCardLinks(ctx context.Context, cardID uuid.UUID) ([]models.CardLink, error) {
	var links []models.CardLink
	err := s.db.WithContext(ctx).Where("card_id = ?", cardID).
		Order("entity_type, entity_id").Find(&links).Error
	return links, mapErr(err)
}

func (s *Store) AddActivity(ctx context.Context, activity *models.Activity) error {
	return mapErr(s.db.WithContext(ctx).Create(activity).Error)
}

// ListActivities returns a card's audit trail, oldest first
func (s *Store) ListActivities(ctx context.Context, cardID uuid.UUID) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.WithContext(ctx).Where("card_id = ?", cardID).Order("id").Find(&activities).Error
	return activities, mapErr(err)
}

// RunInTx runs fn in a transaction; returning an error rolls everything back
func (s *Store) RunInTx(ctx context.Context, fn func(tx intake.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
