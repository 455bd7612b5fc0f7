package intake

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kutbudev/boardroom/pkg/models"
)

// normalizeName lowercases and collapses whitespace for exact name matching
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ResolvedLinks are entity IDs matched from names in model output
type ResolvedLinks struct {
	Vendors  []uuid.UUID `json:"vendors"`
	Contacts []uuid.UUID `json:"contacts"`
}

// ResolveLinks matches vendor and contact names against workspace entities.
// A vendor name may resolve to a contact (by full name or company); accept then
// flags that contact as a vendor. Contacts match on full name or email.
// Unmatched names are dropped.
func ResolveLinks(vendors []models.Vendor, contacts []models.Contact, vendorNames, contactNames []string) ResolvedLinks {
	vendorByName := make(map[string]uuid.UUID, len(vendors))
	for _, v := range vendors {
		if key := normalizeName(v.Name); key != "" {
			vendorByName[key] = v.ID
		}
	}
	contactByName := make(map[string]uuid.UUID, len(contacts))
	contactByCompany := make(map[string]uuid.UUID)
	for _, c := range contacts {
		if key := normalizeName(c.FullName()); key != "" {
			contactByName[key] = c.ID
		}
		if key := normalizeName(c.Email); key != "" {
			contactByName[key] = c.ID
		}
		if key := normalizeName(c.Company); key != "" {
			if _, taken := contactByCompany[key]; !taken {
				contactByCompany[key] = c.ID
			}
		}
	}

	var out ResolvedLinks
	seen := make(map[uuid.UUID]bool)
	for _, name := range vendorNames {
		key := normalizeName(name)
		id, ok := vendorByName[key]
		if !ok {
			id, ok = contactByName[key]
		}
		if !ok {
			id, ok = contactByCompany[key]
		}
		if ok && !seen[id] {
			seen[id] = true
			out.Vendors = append(out.Vendors, id)
		}
	}
	for _, name := range contactNames {
		id, ok := contactByName[normalizeName(name)]
		if ok && !seen[id] {
			seen[id] = true
			out.Contacts = append(out.Contacts, id)
		}
	}
	return out
}

// ResolveParent finds the card titled title among candidates, preferring the card's
// own board. It returns ErrNotFound when nothing matches, and the match together with
// ErrParentMismatch when the only match is on another board.
func ResolveParent(card models.Card, candidates []models.Card, title string) (*models.Card, error) {
	key := normalizeName(title)
	if key == "" {
		return nil, ErrNotFound
	}
	var elsewhere *models.Card
	for i := range candidates {
		c := &candidates[i]
		if c.ID == card.ID || normalizeName(c.Title) != key {
			continue
		}
		if c.BoardID == card.BoardID {
			return c, nil
		}
		if elsewhere == nil {
			elsewhere = c
		}
	}
	if elsewhere != nil {
		return elsewhere, ErrParentMismatch
	}
	return nil, ErrNotFound
}
