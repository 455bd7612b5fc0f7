package intake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kutbudev/boardroom/internal/llm"
)

const sampleVCard = `BEGIN:VCARD
VERSION:3.0
N:Lovelace;Ada;;;
FN:Ada Lovelace
ORG:Analytical Engines Ltd
EMAIL;TYPE=work:ada@example.com
TEL;TYPE=cell:+44 20 7946 0958
END:VCARD`

func TestInferKind(t *testing.T) {
	tests := []struct {
		name    string
		content string
		meta    Metadata
		want    EntityKind
	}{
		{"vcf extension", "whatever", Metadata{Filename: "ada.VCF"}, KindContact},
		{"vcard mimetype", "whatever", Metadata{MimeType: "text/vcard"}, KindContact},
		{"vcard body", sampleVCard, Metadata{}, KindContact},
		{"signature block", "Jane Doe\njane@example.com\n+1 (555) 010-2030", Metadata{}, KindContact},
		{"invoice", "Invoice from Acme Supplies\nNet 30", Metadata{}, KindVendor},
		{"invoice with action", "Review invoice from Acme and send payment", Metadata{}, KindTask},
		{"plain task", "Repaint the fence before winter", Metadata{}, KindTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(tt.content, tt.meta))
		})
	}
}

func TestParseVCard(t *testing.T) {
	c := parseVCard(sampleVCard)
	assert.Equal(t, "Ada", c.first)
	assert.Equal(t, "Lovelace", c.last)
	assert.Equal(t, "ada@example.com", c.email)
	assert.Equal(t, "+44 20 7946 0958", c.phone)
	assert.Equal(t, "Analytical Engines Ltd", c.org)

	c = parseVCard("BEGIN:VCARD\nFN:Grace Brewster Hopper\nEND:VCARD")
	assert.Equal(t, "Grace", c.first)
	assert.Equal(t, "Brewster Hopper", c.last)
}

func TestNormalizeClassificationParsed(t *testing.T) {
	raw := `{"type":"contact","firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","confidence":0.97}`
	rec := NormalizeClassification(raw, nil, "content", Metadata{})
	assert.Equal(t, KindContact, rec.Kind)
	assert.Equal(t, "Ada", rec.FirstName)
	assert.InDelta(t, 0.97, rec.Confidence, 1e-9)
	assert.False(t, rec.Fallback)
}

func TestNormalizeClassificationTriageFields(t *testing.T) {
	raw := "```json\n" + `{"type":"task","title":"Fix leak","summary":"Leak under sink",
		"labels":["Plumbing","plumbing","urgent"],"parent":"Kitchen remodel",
		"vendors":["Acme Plumbing"],"contacts":"Ada Lovelace, Bob Smith","confidence":"0.9"}` + "\n```"
	rec := NormalizeClassification(raw, nil, "Fix leak", Metadata{})
	assert.Equal(t, KindTask, rec.Kind)
	assert.Equal(t, "Leak under sink", rec.Summary)
	assert.Equal(t, []string{"plumbing", "urgent"}, rec.Labels)
	assert.Equal(t, "Kitchen remodel", rec.ParentTitle)
	assert.Equal(t, []string{"Acme Plumbing"}, rec.Vendors)
	assert.Equal(t, []string{"Ada Lovelace", "Bob Smith"}, rec.Contacts)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.Equal(t, "Fix leak", rec.Description, "missing description uses content")
}

func TestNormalizeClassificationUnknownTypeUsesMetadata(t *testing.T) {
	raw := `{"type":"gizmo","firstName":"Ada","email":"ada@example.com"}`
	rec := NormalizeClassification(raw, nil, sampleVCard, Metadata{Filename: "ada.vcf"})
	assert.Equal(t, KindContact, rec.Kind)
	assert.Equal(t, DefaultConfidence, rec.Confidence)
}

func TestNormalizeClassificationDegradesToTask(t *testing.T) {
	// a vendor without a name cannot be stored, so the content becomes a task
	rec := NormalizeClassification(`{"type":"vendor"}`, nil, "Quote for new gutters", Metadata{})
	assert.Equal(t, KindTask, rec.Kind)
	assert.Equal(t, "Quote for new gutters", rec.Title)
	assert.NotEmpty(t, rec.Description)
}

func TestNormalizeClassificationFallback(t *testing.T) {
	rec := NormalizeClassification("", llm.ErrUnavailable, sampleVCard, Metadata{})
	assert.True(t, rec.Fallback)
	assert.Equal(t, FallbackConfidence, rec.Confidence)
	assert.Equal(t, KindContact, rec.Kind)
	assert.Equal(t, "Ada", rec.FirstName)
	assert.Equal(t, "ada@example.com", rec.Email)

	rec = NormalizeClassification("garbage", nil, "Vendor: Hardware Hut\ninvoice attached", Metadata{})
	assert.True(t, rec.Fallback)
	assert.Equal(t, KindVendor, rec.Kind)
	assert.Equal(t, "Hardware Hut", rec.Name)

	rec = NormalizeClassification("", llm.ErrUnavailable, "Estimate #88 for deck", Metadata{})
	assert.Equal(t, KindTask, rec.Kind)
	assert.Equal(t, "Estimate #88", rec.Title)
}

func TestNormalizeClassificationLimits(t *testing.T) {
	raw := `{"type":"task","title":"` + strings.Repeat("t", 400) + `","summary":"` + strings.Repeat("s", 900) + `"}`
	rec := NormalizeClassification(raw, nil, "x", Metadata{})
	assert.Len(t, rec.Title, MaxTitleLength)
	assert.Len(t, rec.Summary, MaxSummaryLength)
}
