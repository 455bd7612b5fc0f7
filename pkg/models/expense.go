package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Expense is created from an extracted receipt
type Expense struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID      `json:"workspace_id" gorm:"not null;type:uuid;index:idx_expenses_workspace"`
	VendorID    *uuid.UUID     `json:"vendor_id,omitempty" gorm:"type:uuid"`
	VendorName  string         `json:"vendor_name"`
	Amount      float64        `json:"amount" gorm:"not null;check:amount > 0"`
	Currency    string         `json:"currency" gorm:"not null;type:varchar(3)"`
	Date        *time.Time     `json:"date,omitempty"`
	Category    string         `json:"category,omitempty"`
	TaxAmount   float64        `json:"tax_amount"`
	Items       datatypes.JSON `json:"items"`
	Confidence  float64        `json:"confidence"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if len(e.Items) == 0 {
		e.Items = datatypes.JSON("[]")
	}
	return nil
}
