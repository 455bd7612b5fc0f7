package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity kinds written by the intake pipeline
const (
	ActivityCardCreated        = "card.created"
	ActivityCardTriaged        = "card.triaged"
	ActivitySuggestionAccepted = "suggestion.accepted"
	ActivityCardReparented     = "card.reparented"
)

// Activity is an append-only audit record. IDs are ULIDs so rows sort by creation time.
type Activity struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CardID    uuid.UUID      `json:"card_id" gorm:"not null;type:uuid;index:idx_activities_card"`
	ActorID   string         `json:"actor_id" gorm:"not null"`
	Kind      string         `json:"kind" gorm:"not null;type:varchar(50)"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if len(a.Payload) == 0 {
		a.Payload = datatypes.JSON("{}")
	}
	return nil
}
