package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// LinkState distinguishes a card that was never given link suggestions from
// one whose suggestions were accepted and cleared.
type LinkState int

const (
	// LinksNone is stored as SQL NULL.
	LinksNone LinkState = iota
	// LinksSuggested is stored as {"vendors": [...], "contacts": [...]}.
	LinksSuggested
	// LinksCleared is stored as the JSON literal null.
	LinksCleared
)

func (s LinkState) String() string {
	switch s {
	case LinksSuggested:
		return "suggested"
	case LinksCleared:
		return "cleared"
	default:
		return "none"
	}
}

// SuggestedLinks is the vendor/contact link suggestion attached to a card.
type SuggestedLinks struct {
	State    LinkState
	Vendors  []uuid.UUID
	Contacts []uuid.UUID
}

// NoSuggestion returns the never-suggested value.
func NoSuggestion() SuggestedLinks {
	return SuggestedLinks{State: LinksNone}
}

// Suggest returns a populated suggestion. Nil slices are stored as empty arrays.
func Suggest(vendors, contacts []uuid.UUID) SuggestedLinks {
	return SuggestedLinks{State: LinksSuggested, Vendors: vendors, Contacts: contacts}
}

// ClearedSuggestion returns the sentinel written when a suggestion is accepted.
func ClearedSuggestion() SuggestedLinks {
	return SuggestedLinks{State: LinksCleared}
}

type linksPayload struct {
	Vendors  []string `json:"vendors"`
	Contacts []string `json:"contacts"`
}

func (l SuggestedLinks) payload() linksPayload {
	p := linksPayload{Vendors: []string{}, Contacts: []string{}}
	for _, id := range l.Vendors {
		p.Vendors = append(p.Vendors, id.String())
	}
	for _, id := range l.Contacts {
		p.Contacts = append(p.Contacts, id.String())
	}
	return p
}

// Value implements driver.Valuer
func (l SuggestedLinks) Value() (driver.Value, error) {
	switch l.State {
	case LinksNone:
		return nil, nil
	case LinksCleared:
		return "null", nil
	}
	b, err := json.Marshal(l.payload())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *SuggestedLinks) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = NoSuggestion()
		return nil
	case []byte:
		return l.decode(v)
	case string:
		return l.decode([]byte(v))
	default:
		return fmt.Errorf("unsupported suggested links value %T", value)
	}
}

func (l *SuggestedLinks) decode(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		*l = NoSuggestion()
		return nil
	}
	if bytes.Equal(raw, []byte("null")) {
		*l = ClearedSuggestion()
		return nil
	}
	var p linksPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode suggested links: %w", err)
	}
	*l = Suggest(parseIDs(p.Vendors), parseIDs(p.Contacts))
	return nil
}

func parseIDs(values []string) []uuid.UUID {
	var ids []uuid.UUID
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarshalJSON renders the suggestion object, or null when there is none.
func (l SuggestedLinks) MarshalJSON() ([]byte, error) {
	if l.State != LinksSuggested {
		return []byte("null"), nil
	}
	return json.Marshal(l.payload())
}

// GormDataType implements schema.GormDataTypeInterface
func (SuggestedLinks) GormDataType() string {
	return "json"
}

// GormDBDataType picks the column type per dialect
func (SuggestedLinks) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}

// UnmarshalJSON is the inverse of MarshalJSON; null decodes to no suggestion.
func (l *SuggestedLinks) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = NoSuggestion()
		return nil
	}
	return l.decode(data)
}
