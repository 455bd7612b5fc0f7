package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Board groups cards. WorkspaceID is the tenant boundary.
type Board struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID      `json:"workspace_id" gorm:"not null;type:uuid;index:idx_boards_workspace"`
	Name        string         `json:"name" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	Cards []*Card `json:"cards,omitempty" gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE"`
}

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Vendor is a company the workspace buys from
type Vendor struct {
	ID          uuid.UUID                   `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID                   `json:"workspace_id" gorm:"not null;type:uuid;index:idx_vendors_workspace"`
	Name        string                      `json:"name" gorm:"not null"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Notes       string                      `json:"notes,omitempty"`
	CreatedAt   time.Time                   `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time                   `json:"updated_at" gorm:"not null"`
	DeletedAt   gorm.DeletedAt              `json:"-" gorm:"index"`
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Contact is a person. IsVendor is set when the contact is linked to a card as a vendor.
type Contact struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID      `json:"workspace_id" gorm:"not null;type:uuid;index:idx_contacts_workspace"`
	FirstName   string         `json:"first_name" gorm:"not null"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email,omitempty" gorm:"index:idx_contacts_email"`
	Phone       string         `json:"phone,omitempty"`
	Company     string         `json:"company,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	IsVendor    bool           `json:"is_vendor" gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (c *Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// EntityType is the kind of entity a CardLink points at
type EntityType string

const (
	EntityVendor  EntityType = "VENDOR"
	EntityContact EntityType = "CONTACT"
)

// CardLink joins a card to a vendor or contact
type CardLink struct {
	CardID     uuid.UUID  `json:"card_id" gorm:"primaryKey;type:uuid"`
	EntityType EntityType `json:"entity_type" gorm:"primaryKey;type:varchar(20)"`
	EntityID   uuid.UUID  `json:"entity_id" gorm:"primaryKey;type:uuid"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`

	Card *Card `json:"-" gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (CardLink) TableName() string {
	return "card_links"
}
