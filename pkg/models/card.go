package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskStatus represents the workflow status of a card
type TaskStatus string

const (
	TaskStatusTODO       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskPriority represents the priority of a card
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "H"
	TaskPriorityMedium TaskPriority = "M"
	TaskPriorityLow    TaskPriority = "L"
)

// IntakeStatus tracks where a card is in AI triage.
// The only transition out of INBOX or SUGGESTED is to PLACED.
type IntakeStatus string

const (
	IntakeInbox     IntakeStatus = "INBOX"
	IntakeSuggested IntakeStatus = "SUGGESTED"
	IntakePlaced    IntakeStatus = "PLACED"
)

// AwaitingReview lists the intake statuses an accept may start from.
var AwaitingReview = []IntakeStatus{IntakeInbox, IntakeSuggested}

// Source records how a card entered the system
type Source string

const (
	SourcePaste    Source = "paste"
	SourceDocument Source = "document"
	SourceEmail    Source = "email"
	SourceReceipt  Source = "receipt"
	SourceMeeting  Source = "meeting"
	SourceAPI      Source = "api"
)

// Card is a task on a board. Cards form a tree through ParentID.
type Card struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	BoardID     uuid.UUID    `json:"board_id" gorm:"not null;type:uuid;index:idx_cards_board_status"`
	ParentID    *uuid.UUID   `json:"parent_id,omitempty" gorm:"type:uuid;index:idx_cards_parent"`
	Title       string       `json:"title" gorm:"not null;type:varchar(255)"`
	Description string       `json:"description" gorm:"not null;default:''"`
	Status      TaskStatus   `json:"status" gorm:"not null;type:varchar(50);index:idx_cards_board_status"`
	Priority    TaskPriority `json:"priority" gorm:"not null;type:varchar(1)"`
	Assignee    string       `json:"assignee,omitempty" gorm:"type:varchar(255)"`
	Source      Source       `json:"source" gorm:"type:varchar(20)"`

	IntakeStatus        IntakeStatus                `json:"intake_status" gorm:"not null;type:varchar(20);default:INBOX"`
	AISummary           *string                     `json:"ai_summary,omitempty"`
	AILabels            datatypes.JSONSlice[string] `json:"ai_labels"`
	AISuggestedParentID *uuid.UUID                  `json:"ai_suggested_parent_id,omitempty" gorm:"type:uuid"`
	AISuggestedLinks    SuggestedLinks              `json:"ai_suggested_links"`
	AIConfidence        *float64                    `json:"ai_confidence,omitempty"`

	ChildCount  int  `json:"child_count" gorm:"not null;default:0"`
	HasChildren bool `json:"has_children" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Board *Board `json:"board,omitempty" gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns an id when the caller did not
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = TaskStatusTODO
	}
	if c.Priority == "" {
		c.Priority = TaskPriorityMedium
	}
	if c.IntakeStatus == "" {
		c.IntakeStatus = IntakeInbox
	}
	return nil
}

// IsAwaitingReview reports whether the card can still be accepted.
func (c *Card) IsAwaitingReview() bool {
	return c.IntakeStatus == IntakeInbox || c.IntakeStatus == IntakeSuggested
}
