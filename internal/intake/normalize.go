package intake

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"

	"github.com/kutbudev/boardroom/pkg/models"
)

// Field limits applied to every extraction
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 5000
	MaxNotesLength       = 500
	MaxSummaryLength     = 500
	MaxLabels            = 10
	MaxLabelLength       = 50
	MaxExtractedTasks    = 20
	fallbackTitleLength  = 100
)

// Confidence assigned when the model omits it, and when every field comes from heuristics
const (
	DefaultConfidence  = 0.85
	FallbackConfidence = 0.3
)

const untitled = "Untitled intake"

var (
	estimatePattern = regexp.MustCompile(`(?i)estimate\s*#?\s*(\d+)`)
	projectPattern  = regexp.MustCompile(`(?i)project\s*name[:\s]+([^\r\n]+)`)
	vendorPattern   = regexp.MustCompile(`(?i)(?:vendor|company)[:\s]+([^\r\n]+)`)
	totalPattern    = regexp.MustCompile(`(?i)(?:grand\s+)?total[^0-9\r\n]*([0-9][0-9.,]*)`)
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\+?[0-9][0-9 ()\-.]{6,}[0-9]`)
)

// CleanJSON extracts the JSON object from raw model output. It strips markdown
// fences and otherwise takes the first balanced {...} span.
func CleanJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if inner, ok := stripFences(s); ok {
		s = inner
	}
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return s, true
	}
	span, ok := firstObject(s)
	if !ok || !json.Valid([]byte(span)) {
		return "", false
	}
	return span, true
}

func stripFences(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	// skip the language tag
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// firstObject returns the first balanced object, ignoring braces inside strings
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeObject cleans raw and decodes it into v
func decodeObject(raw string, v interface{}) bool {
	cleaned, ok := CleanJSON(raw)
	if !ok {
		return false
	}
	return sonic.UnmarshalString(cleaned, v) == nil
}

// flexString accepts strings, numbers and booleans
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// flexNumber keeps numbers as numbers and strings as text for later coercion
type flexNumber struct {
	Set    bool
	Number float64
	Text   string
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = flexNumber{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Set = true
		f.Text = s
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		// objects, arrays and booleans count as missing
		return nil
	}
	f.Set = true
	f.Number = n
	return nil
}

// flexStrings accepts a list of scalars or one comma separated string
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = nil
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				*f = append(*f, p)
			}
		}
		return nil
	}
	var items []flexString
	if err := sonic.Unmarshal(data, &items); err != nil {
		return nil
	}
	for _, item := range items {
		if s := item.String(); s != "" {
			*f = append(*f, s)
		}
	}
	return nil
}

// NormalizePriority converts descriptive priority strings to their single-character form.
// Unknown values default to medium.
func NormalizePriority(p string) models.TaskPriority {
	switch strings.ToUpper(strings.TrimSpace(p)) {
	case "HIGH", "H", "URGENT", "CRITICAL":
		return models.TaskPriorityHigh
	case "LOW", "L":
		return models.TaskPriorityLow
	default:
		return models.TaskPriorityMedium
	}
}

// normalizeConfidence maps the model's value into [0, 1]; percentages are accepted.
// An omitted value gets DefaultConfidence, an unreadable one FallbackConfidence.
func normalizeConfidence(f flexNumber) float64 {
	if !f.Set {
		return DefaultConfidence
	}
	v := f.Number
	if f.Text != "" {
		text := strings.TrimSuffix(strings.TrimSpace(f.Text), "%")
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return FallbackConfidence
		}
		v = n
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
		return FallbackConfidence
	}
	if v > 1 {
		v /= 100
	}
	return v
}

// CoerceAmount turns a model amount into a positive finite number.
// Strings keep digits, '.', ',' and '-'; a lone comma with two trailing digits is a decimal separator.
func CoerceAmount(f flexNumber) (float64, bool) {
	if !f.Set {
		return 0, false
	}
	v := f.Number
	if f.Text != "" {
		n, ok := parseAmountText(f.Text)
		if !ok {
			return 0, false
		}
		v = n
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseAmountText(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		if i := strings.LastIndexByte(s, ','); len(s)-i-1 <= 2 {
			s = s[:i] + "." + s[i+1:]
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

func normalizeLabels(labels []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range labels {
		l = truncate(strings.ToLower(l), MaxLabelLength)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
		if len(out) == MaxLabels {
			break
		}
	}
	return out
}

// FallbackTitle derives a title from content: estimate number and project name,
// then a vendor or company line, then the first non-empty line. It is never empty.
func FallbackTitle(content string) string {
	var parts []string
	if m := estimatePattern.FindStringSubmatch(content); m != nil {
		parts = append(parts, "Estimate #"+m[1])
	}
	if m := projectPattern.FindStringSubmatch(content); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		if m := vendorPattern.FindStringSubmatch(content); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				parts = append(parts, name)
			}
		}
	}
	title := strings.Join(parts, " - ")
	if title == "" {
		title = firstLine(content)
	}
	title = truncate(title, fallbackTitleLength)
	if title == "" {
		return untitled
	}
	return title
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// TaskRecord is one normalized extracted task
type TaskRecord struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	Assignee    string              `json:"assignee,omitempty"`
	ParentTitle string              `json:"parent,omitempty"`
}

// TaskList is the normalized result of task extraction
type TaskList struct {
	Tasks      []TaskRecord `json:"tasks"`
	Confidence float64      `json:"confidence"`
	Fallback   bool         `json:"fallback"`
}

type rawTask struct {
	Title       flexString `json:"title"`
	Description flexString `json:"description"`
	Priority    flexString `json:"priority"`
	Assignee    flexString `json:"assignee"`
	Parent      flexString `json:"parent"`
}

// rawTaskList also accepts a single task object at the top level
type rawTaskList struct {
	Tasks       []rawTask  `json:"tasks"`
	Confidence  flexNumber `json:"confidence"`
	Title       flexString `json:"title"`
	Description flexString `json:"description"`
	Priority    flexString `json:"priority"`
	Assignee    flexString `json:"assignee"`
	Parent      flexString `json:"parent"`
}

// NormalizeTasks validates model output for task extraction. A gateway error or
// unusable output yields a single heuristic task built from content.
func NormalizeTasks(raw string, gatewayErr error, content string) TaskList {
	if gatewayErr == nil {
		var parsed rawTaskList
		if decodeObject(raw, &parsed) {
			items := parsed.Tasks
			if len(items) == 0 && parsed.Title.String() != "" {
				items = []rawTask{{
					Title:       parsed.Title,
					Description: parsed.Description,
					Priority:    parsed.Priority,
					Assignee:    parsed.Assignee,
					Parent:      parsed.Parent,
				}}
			}
			var tasks []TaskRecord
			for _, t := range items {
				title := truncate(t.Title.String(), MaxTitleLength)
				if title == "" {
					continue
				}
				tasks = append(tasks, TaskRecord{
					Title:       title,
					Description: truncate(t.Description.String(), MaxDescriptionLength),
					Priority:    NormalizePriority(t.Priority.String()),
					Assignee:    truncate(t.Assignee.String(), MaxTitleLength),
					ParentTitle: truncate(t.Parent.String(), MaxTitleLength),
				})
				if len(tasks) == MaxExtractedTasks {
					break
				}
			}
			if len(tasks) > 0 {
				return TaskList{Tasks: tasks, Confidence: normalizeConfidence(parsed.Confidence)}
			}
		}
	}
	return TaskList{
		Tasks: []TaskRecord{{
			Title:       FallbackTitle(content),
			Description: truncate(content, MaxDescriptionLength),
			Priority:    models.TaskPriorityMedium,
		}},
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
}

// ReceiptItem is a receipt line
type ReceiptItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// ReceiptRecord is a normalized receipt extraction
type ReceiptRecord struct {
	VendorName string        `json:"vendorName"`
	Amount     float64       `json:"amount"`
	Currency   string        `json:"currency"`
	Date       *time.Time    `json:"date,omitempty"`
	Category   string        `json:"category,omitempty"`
	TaxAmount  float64       `json:"taxAmount,omitempty"`
	Items      []ReceiptItem `json:"items"`
	Confidence float64       `json:"confidence"`
	Fallback   bool          `json:"fallback"`
}

type rawReceiptItem struct {
	Description flexString `json:"description"`
	Quantity    flexNumber `json:"quantity"`
	Amount      flexNumber `json:"amount"`
}

type rawReceipt struct {
	VendorName flexString       `json:"vendorName"`
	Vendor     flexString       `json:"vendor"`
	Amount     flexNumber       `json:"amount"`
	Total      flexNumber       `json:"total"`
	Currency   flexString       `json:"currency"`
	Date       flexString       `json:"date"`
	Category   flexString       `json:"category"`
	Items      []rawReceiptItem `json:"items"`
	TaxAmount  flexNumber       `json:"taxAmount"`
	Confidence flexNumber       `json:"confidence"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func normalizeCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "$":
		return "USD"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	case "₺":
		return "TRY"
	}
	if len(s) == 3 && strings.Trim(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") == "" {
		return s
	}
	return "USD"
}

func detectCurrency(content string) string {
	switch {
	case strings.Contains(content, "€"):
		return "EUR"
	case strings.Contains(content, "£"):
		return "GBP"
	case strings.Contains(content, "₺"):
		return "TRY"
	default:
		return "USD"
	}
}

// NormalizeReceipt validates model output for a receipt. When the amount cannot be
// coerced to a positive number it returns the partial record with ErrInvalidAmount.
func NormalizeReceipt(raw string, gatewayErr error, content string) (ReceiptRecord, error) {
	if gatewayErr == nil {
		var parsed rawReceipt
		if decodeObject(raw, &parsed) {
			vendor := parsed.VendorName.String()
			if vendor == "" {
				vendor = parsed.Vendor.String()
			}
			amountField := parsed.Amount
			if !amountField.Set {
				amountField = parsed.Total
			}
			rec := ReceiptRecord{
				VendorName: truncate(vendor, MaxTitleLength),
				Currency:   normalizeCurrency(parsed.Currency.String()),
				Date:       parseDate(parsed.Date.String()),
				Category:   truncate(parsed.Category.String(), MaxLabelLength),
				Items:      []ReceiptItem{},
				Confidence: normalizeConfidence(parsed.Confidence),
			}
			if tax, ok := CoerceAmount(parsed.TaxAmount); ok {
				rec.TaxAmount = tax
			}
			for _, item := range parsed.Items {
				desc := truncate(item.Description.String(), MaxNotesLength)
				if desc == "" {
					continue
				}
				line := ReceiptItem{Description: desc, Quantity: 1}
				if q, ok := CoerceAmount(item.Quantity); ok {
					line.Quantity = q
				}
				if a, ok := CoerceAmount(item.Amount); ok {
					line.Amount = a
				}
				rec.Items = append(rec.Items, line)
			}
			amount, ok := CoerceAmount(amountField)
			if !ok {
				return rec, ErrInvalidAmount
			}
			rec.Amount = amount
			return rec, nil
		}
	}

	rec := ReceiptRecord{
		Currency:   detectCurrency(content),
		Items:      []ReceiptItem{},
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
	if m := vendorPattern.FindStringSubmatch(content); m != nil {
		rec.VendorName = truncate(m[1], MaxTitleLength)
	} else {
		rec.VendorName = truncate(firstLine(content), MaxTitleLength)
	}
	m := totalPattern.FindStringSubmatch(content)
	if m == nil {
		return rec, ErrInvalidAmount
	}
	amount, ok := CoerceAmount(flexNumber{Set: true, Text: m[1]})
	if !ok {
		return rec, ErrInvalidAmount
	}
	rec.Amount = amount
	return rec, nil
}
