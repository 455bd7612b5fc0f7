package intake

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kutbudev/boardroom/pkg/models"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		minScore float64
		maxScore float64
	}{
		{
			name:     "identical strings",
			a:        "Replace kitchen faucet cartridge",
			b:        "Replace kitchen faucet cartridge",
			minScore: 1.0,
			maxScore: 1.0,
		},
		{
			name:     "case is ignored",
			a:        "REPLACE Kitchen faucet",
			b:        "replace kitchen FAUCET",
			minScore: 1.0,
			maxScore: 1.0,
		},
		{
			name:     "partial overlap",
			a:        "Order tiles for bathroom floor",
			b:        "Order grout for bathroom walls",
			minScore: 0.3,
			maxScore: 0.4,
		},
		{
			name:     "short tokens are ignored",
			a:        "fix the bug",
			b:        "fix the bug",
			minScore: 0.0,
			maxScore: 0.0,
		},
		{
			name:     "empty string handling",
			a:        "",
			b:        "Some content here",
			minScore: 0.0,
			maxScore: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := JaccardSimilarity(tt.a, tt.b)
			if score < tt.minScore || score > tt.maxScore {
				t.Errorf("JaccardSimilarity(%q, %q) = %v, want between %v and %v",
					tt.a, tt.b, score, tt.minScore, tt.maxScore)
			}
		})
	}
}

func TestJaccardSymmetryAndBounds(t *testing.T) {
	texts := []string{
		"Fix login bug for Acme",
		"Fix login bug Acme Corp",
		"Schedule plumber visit next week",
		"plumber visit",
		"",
		"a an the",
		"Ümlaut straße größe",
	}
	for _, a := range texts {
		for _, b := range texts {
			ab := JaccardSimilarity(a, b)
			ba := JaccardSimilarity(b, a)
			assert.Equal(t, ab, ba, "symmetry for %q / %q", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
		if len(tokenize(a)) > 0 {
			assert.Equal(t, 1.0, JaccardSimilarity(a, a), "self similarity for %q", a)
		}
	}
}

func TestTokenize(t *testing.T) {
	result := tokenize("Call Vendor about the INVOICE now")

	for _, want := range []string{"call", "vendor", "about", "invoice"} {
		if _, exists := result[want]; !exists {
			t.Errorf("Expected %q in tokenized result", want)
		}
	}
	for _, skip := range []string{"the", "now"} {
		if _, exists := result[skip]; exists {
			t.Errorf("Should not contain short token %q", skip)
		}
	}
}

func TestRankSimilar(t *testing.T) {
	boardID := uuid.New()
	existing := models.Card{ID: uuid.New(), BoardID: boardID, Title: "Fix login bug Acme Corp"}
	unrelated := models.Card{ID: uuid.New(), BoardID: boardID, Title: "Paint the garage door"}
	byDescription := models.Card{
		ID:          uuid.New(),
		BoardID:     boardID,
		Title:       "Ticket 4411",
		Description: "users cannot login after password reset",
	}

	similar := RankSimilar("Fix login bug for Acme", "users cannot login after password reset",
		[]models.Card{unrelated, existing, byDescription})
	require.Len(t, similar, 2)
	assert.Equal(t, byDescription.ID, similar[0].Card.ID, "description match scores 0.8")
	assert.Equal(t, 80, similar[0].SimilarityPercent)
	assert.Equal(t, existing.ID, similar[1].Card.ID)
	assert.GreaterOrEqual(t, similar[1].SimilarityPercent, 60)
}

func TestRankSimilarCapsResults(t *testing.T) {
	var pool []models.Card
	for i := 0; i < 8; i++ {
		pool = append(pool, models.Card{ID: uuid.New(), Title: "Renew domain registration"})
	}
	similar := RankSimilar("Renew domain registration", "", pool)
	assert.Len(t, similar, MaxSimilarResults)
}

func TestInDuplicatePool(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	boardID := uuid.New()
	excluded := uuid.New()

	base := models.Card{ID: uuid.New(), BoardID: boardID, Status: models.TaskStatusTODO, CreatedAt: now.Add(-time.Hour)}
	assert.True(t, InDuplicatePool(base, boardID, excluded, now))

	done := base
	done.Status = models.TaskStatusDone
	assert.False(t, InDuplicatePool(done, boardID, excluded, now))

	old := base
	old.CreatedAt = now.Add(-31 * 24 * time.Hour)
	assert.False(t, InDuplicatePool(old, boardID, excluded, now))

	other := base
	other.BoardID = uuid.New()
	assert.False(t, InDuplicatePool(other, boardID, excluded, now))

	self := base
	self.ID = excluded
	assert.False(t, InDuplicatePool(self, boardID, excluded, now))
}
