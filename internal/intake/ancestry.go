package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// MaxAncestryDepth bounds the ancestor walk. Deeper chains are treated as cycles.
const MaxAncestryDepth = 1000

// CheckAncestry reports ErrCyclicHierarchy when making parentID the parent of cardID
// would close a loop. It walks up from parentID; a chain that revisits a node, or
// runs past MaxAncestryDepth, is rejected as well. A missing ancestor ends the walk.
func CheckAncestry(ctx context.Context, store Store, cardID, parentID uuid.UUID) error {
	if cardID == parentID {
		return ErrCyclicHierarchy
	}

	visited := map[uuid.UUID]bool{parentID: true}
	current := parentID
	for depth := 0; ; depth++ {
		if depth >= MaxAncestryDepth {
			return ErrCyclicHierarchy
		}
		card, err := store.GetCard(ctx, current)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return persistenceErr("walk ancestors", err)
		}
		if card.ParentID == nil {
			return nil
		}
		next := *card.ParentID
		if next == cardID || visited[next] {
			return ErrCyclicHierarchy
		}
		visited[next] = true
		current = next
	}
}
