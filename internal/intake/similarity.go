package intake

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kutbudev/boardroom/pkg/models"
)

const (
	// SimilarityThreshold is the minimum combined score for a duplicate candidate
	SimilarityThreshold = 0.6
	// DescriptionWeight discounts description overlap relative to title overlap
	DescriptionWeight = 0.8
	// MaxSimilarResults caps the ranked candidate list
	MaxSimilarResults = 5
	// DuplicateWindow is how far back open cards are compared
	DuplicateWindow = 30 * 24 * time.Hour
)

// SimilarCard is a duplicate candidate
type SimilarCard struct {
	Card              models.Card `json:"task"`
	Score             float64     `json:"-"`
	SimilarityPercent int         `json:"similarity_percent"`
}

// tokenize lowercases text, splits on whitespace and keeps tokens longer than three runes
func tokenize(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))

	wordSet := make(map[string]struct{}, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) > 3 {
			wordSet[word] = struct{}{}
		}
	}
	return wordSet
}

// JaccardSimilarity calculates the Jaccard similarity coefficient between two texts.
// Returns a value between 0 (no overlap) and 1 (identical token sets).
func JaccardSimilarity(a, b string) float64 {
	setA := tokenize(a)
	setB := tokenize(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if _, exists := setB[word]; exists {
			intersection++
		}
	}

	// |A| + |B| - |A ∩ B|
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// CombinedScore weighs title overlap above description overlap
func CombinedScore(title, description string, existing models.Card) float64 {
	titleSim := JaccardSimilarity(title, existing.Title)
	descSim := JaccardSimilarity(description, existing.Description) * DescriptionWeight
	return math.Max(titleSim, descSim)
}

// InDuplicatePool reports whether an existing card is compared against a candidate
func InDuplicatePool(card models.Card, boardID, excludeID uuid.UUID, now time.Time) bool {
	if card.BoardID != boardID || card.ID == excludeID {
		return false
	}
	if card.Status == models.TaskStatusDone {
		return false
	}
	return !card.CreatedAt.Before(now.Add(-DuplicateWindow))
}

// RankSimilar scores pool against the candidate and returns the top matches, highest first.
// Pool filtering is the caller's job; see InDuplicatePool.
func RankSimilar(title, description string, pool []models.Card) []SimilarCard {
	var similar []SimilarCard
	for _, card := range pool {
		score := CombinedScore(title, description, card)
		if score >= SimilarityThreshold {
			similar = append(similar, SimilarCard{
				Card:              card,
				Score:             score,
				SimilarityPercent: int(math.Round(score * 100)),
			})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Score > similar[j].Score
	})
	if len(similar) > MaxSimilarResults {
		similar = similar[:MaxSimilarResults]
	}
	return similar
}

// FindSimilar loads open cards from the last 30 days on the board and ranks them.
func (e *Engine) FindSimilar(ctx context.Context, title, description string, boardID, excludeID uuid.UUID) ([]SimilarCard, error) {
	now := e.now()
	cards, err := e.store.ListCards(ctx, CardFilter{
		BoardID:       boardID,
		ExcludeID:     excludeID,
		ExcludeStatus: models.TaskStatusDone,
		CreatedAfter:  now.Add(-DuplicateWindow),
	})
	if err != nil {
		return nil, persistenceErr("list duplicate pool", err)
	}

	pool := cards[:0]
	for _, c := range cards {
		if InDuplicatePool(c, boardID, excludeID, now) {
			pool = append(pool, c)
		}
	}
	return RankSimilar(title, description, pool), nil
}
