package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kutbudev/boardroom/pkg/models"
)

func run(t *testing.T, handler http.HandlerFunc, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BOARDROOM_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("BOARDROOM_API_URL", "")
	t.Setenv("BOARDROOM_ACTOR_ID", "")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api-url", srv.URL, "--actor", "ops"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSimilarYAML(t *testing.T) {
	board := uuid.New()
	out, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards/"+board.String()+"/similar", r.URL.Path)
		_, _ = io.WriteString(w, `{"matches":[{"task":{"title":"Fix the gutter"},"similarity_percent":67}]}`)
	}, "similar", "--board", board.String(), "-o", "yaml", "Fix", "gutter")
	require.NoError(t, err)

	var parsed []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, 67, parsed[0]["similarity_percent"])
}

func TestSimilarText(t *testing.T) {
	board := uuid.New()
	out, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"matches":[]}`)
	}, "similar", "--board", board.String(), "Fix roof")
	require.NoError(t, err)
	assert.Contains(t, out, "No similar cards.")
}

func TestAcceptConflictIsReported(t *testing.T) {
	card := uuid.New()
	out, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops", r.Header.Get("X-Actor-ID"))
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"not_awaiting_review"}`)
	}, "accept", card.String())
	require.NoError(t, err)
	assert.Contains(t, out, "already placed")
}

func TestReviewAcceptsWithYes(t *testing.T) {
	board := uuid.New()
	card := uuid.New()
	var accepted int
	out, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/cards"):
			_, _ = io.WriteString(w, `[{"id":"`+card.String()+`","title":"Fix roof","ai_confidence":0.9,"intake_status":"SUGGESTED"},
				{"id":"`+uuid.NewString()+`","title":"Low","ai_confidence":0.5,"intake_status":"SUGGESTED"}]`)
		case strings.HasSuffix(r.URL.Path, "/accept"):
			accepted++
			_, _ = io.WriteString(w, `{"success":true,"card_id":"`+card.String()+`"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, "review", "--board", board.String(), "--yes", "--min-confidence", "0.8")
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Contains(t, out, "1 accepted, 0 skipped")
}

func TestBoardRequired(t *testing.T) {
	_, err := run(t, func(w http.ResponseWriter, r *http.Request) {}, "recount")
	assert.ErrorContains(t, err, "--board is required")
}

func TestRejectsUnknownOutput(t *testing.T) {
	_, err := run(t, func(w http.ResponseWriter, r *http.Request) {}, "-o", "xml", "recount", "--board", uuid.NewString())
	assert.Error(t, err)
}

func TestRenderSuggestion(t *testing.T) {
	conf := 0.875
	summary := "Call the **roofer**"
	card := &models.Card{
		Title:            "Roof leak",
		AIConfidence:     &conf,
		AISummary:        &summary,
		AILabels:         []string{"roof", "urgent"},
		AISuggestedLinks: models.Suggest([]uuid.UUID{uuid.New()}, nil),
	}

	got := renderSuggestion(card, "Exterior", nil)
	for _, want := range []string{"Roof leak", "88%", "Exterior", "roof, urgent", "1 vendor(s), 0 contact(s)", "roofer"} {
		assert.Contains(t, got, want)
	}
}

func TestFilterByConfidence(t *testing.T) {
	hi, lo := 0.9, 0.4
	cards := []models.Card{{Title: "a", AIConfidence: &hi}, {Title: "b", AIConfidence: &lo}, {Title: "c"}}
	assert.Len(t, filterByConfidence(cards, 0), 3)

	got := filterByConfidence(cards, 0.5)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("abcd"))
	assert.Equal(t, "sk-o*****1234", maskKey("sk-or12341234"))
}
