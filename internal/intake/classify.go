package intake

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/models"
)

// EntityKind is the entity an intake item becomes
type EntityKind string

const (
	KindTask    EntityKind = "task"
	KindVendor  EntityKind = "vendor"
	KindContact EntityKind = "contact"
)

// Metadata describes where content came from
type Metadata struct {
	Filename string
	MimeType string
}

// ClassificationRecord is the normalized classification and triage output
type ClassificationRecord struct {
	Kind EntityKind `json:"type"`

	// task
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// contact
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`

	// vendor
	Name  string   `json:"name,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Notes string   `json:"notes,omitempty"`

	// triage
	Summary     string   `json:"summary,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	ParentTitle string   `json:"parent,omitempty"`
	Vendors     []string `json:"vendors,omitempty"`
	Contacts    []string `json:"contacts,omitempty"`

	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

type rawClassification struct {
	Type        flexString  `json:"type"`
	Title       flexString  `json:"title"`
	Description flexString  `json:"description"`
	FirstName   flexString  `json:"firstName"`
	LastName    flexString  `json:"lastName"`
	Email       flexString  `json:"email"`
	Phone       flexString  `json:"phone"`
	Company     flexString  `json:"company"`
	Name        flexString  `json:"name"`
	Tags        flexStrings `json:"tags"`
	Notes       flexString  `json:"notes"`
	Summary     flexString  `json:"summary"`
	Labels      flexStrings `json:"labels"`
	Parent      flexString  `json:"parent"`
	Vendors     flexStrings `json:"vendors"`
	Contacts    flexStrings `json:"contacts"`
	Confidence  flexNumber  `json:"confidence"`
}

func parseKind(s string) (EntityKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "task", "todo", "card", "issue":
		return KindTask, true
	case "vendor", "supplier", "company":
		return KindVendor, true
	case "contact", "person", "people":
		return KindContact, true
	}
	return "", false
}

var actionWords = []string{"fix", "implement", "review", "schedule", "prepare", "send", "call", "follow up", "todo", "deadline"}

// InferKind guesses the entity type from metadata and content alone
func InferKind(content string, meta Metadata) EntityKind {
	mime := strings.ToLower(meta.MimeType)
	ext := strings.ToLower(filepath.Ext(meta.Filename))
	if mime == "text/vcard" || mime == "text/x-vcard" || ext == ".vcf" || strings.Contains(content, "BEGIN:VCARD") {
		return KindContact
	}

	lower := strings.ToLower(content)
	hasAction := false
	for _, w := range actionWords {
		if strings.Contains(lower, w) {
			hasAction = true
			break
		}
	}
	if !hasAction && emailPattern.MatchString(content) && phonePattern.MatchString(content) {
		return KindContact
	}
	if !hasAction && (strings.Contains(lower, "invoice") || strings.Contains(lower, "vendor")) {
		return KindVendor
	}
	return KindTask
}

// NormalizeClassification validates model output for classification. A gateway error,
// unparsable output or a missing type falls back to InferKind and heuristic fields.
// A record whose type-specific fields come out empty degrades to a task.
func NormalizeClassification(raw string, gatewayErr error, content string, meta Metadata) ClassificationRecord {
	var parsed rawClassification
	ok := gatewayErr == nil && decodeObject(raw, &parsed)
	if !ok {
		return completeRecord(fallbackClassification(content, meta), content)
	}

	rec := ClassificationRecord{
		Title:       parsed.Title.String(),
		Description: parsed.Description.String(),
		FirstName:   parsed.FirstName.String(),
		LastName:    parsed.LastName.String(),
		Email:       parsed.Email.String(),
		Phone:       parsed.Phone.String(),
		Company:     parsed.Company.String(),
		Name:        parsed.Name.String(),
		Tags:        parsed.Tags,
		Notes:       parsed.Notes.String(),
		Summary:     parsed.Summary.String(),
		Labels:      parsed.Labels,
		ParentTitle: parsed.Parent.String(),
		Vendors:     parsed.Vendors,
		Contacts:    parsed.Contacts,
		Confidence:  normalizeConfidence(parsed.Confidence),
	}
	kind, known := parseKind(parsed.Type.String())
	if !known {
		kind = InferKind(content, meta)
	}
	rec.Kind = kind
	return completeRecord(rec, content)
}

func fallbackClassification(content string, meta Metadata) ClassificationRecord {
	rec := ClassificationRecord{
		Kind:       InferKind(content, meta),
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
	switch rec.Kind {
	case KindContact:
		card := parseVCard(content)
		rec.FirstName, rec.LastName = card.first, card.last
		rec.Email, rec.Phone, rec.Company = card.email, card.phone, card.org
		if rec.Email == "" {
			rec.Email = emailPattern.FindString(content)
		}
		if rec.Phone == "" {
			rec.Phone = strings.TrimSpace(phonePattern.FindString(content))
		}
		if rec.FirstName == "" && rec.LastName == "" {
			rec.FirstName, rec.LastName = splitName(firstLine(content))
		}
	case KindVendor:
		if m := vendorPattern.FindStringSubmatch(content); m != nil {
			rec.Name = strings.TrimSpace(m[1])
		} else {
			rec.Name = firstLine(content)
		}
		rec.Notes = content
	}
	return rec
}

// completeRecord applies length limits and fills task fields; an entity without
// its identifying fields becomes a task so content is never dropped.
func completeRecord(rec ClassificationRecord, content string) ClassificationRecord {
	switch rec.Kind {
	case KindContact:
		rec.FirstName = truncate(rec.FirstName, MaxTitleLength)
		rec.LastName = truncate(rec.LastName, MaxTitleLength)
		rec.Email = truncate(rec.Email, MaxTitleLength)
		rec.Phone = truncate(rec.Phone, MaxLabelLength)
		rec.Company = truncate(rec.Company, MaxTitleLength)
		rec.Notes = truncate(rec.Notes, MaxNotesLength)
		if rec.FirstName == "" && rec.LastName == "" && rec.Email == "" {
			rec.Kind = KindTask
		}
	case KindVendor:
		if rec.Name == "" {
			rec.Name = rec.Company
		}
		rec.Name = truncate(rec.Name, MaxTitleLength)
		rec.Notes = truncate(rec.Notes, MaxNotesLength)
		rec.Tags = normalizeLabels(rec.Tags)
		if rec.Name == "" {
			rec.Kind = KindTask
		}
	default:
		rec.Kind = KindTask
	}

	if rec.Kind == KindTask {
		rec.Title = truncate(rec.Title, MaxTitleLength)
		if rec.Title == "" {
			rec.Title = FallbackTitle(content)
		}
		rec.Description = truncate(rec.Description, MaxDescriptionLength)
		if rec.Description == "" {
			rec.Description = truncate(content, MaxDescriptionLength)
		}
	}
	rec.Summary = truncate(rec.Summary, MaxSummaryLength)
	rec.Labels = normalizeLabels(rec.Labels)
	rec.ParentTitle = truncate(rec.ParentTitle, MaxTitleLength)
	return rec
}

type vCard struct {
	first, last, email, phone, org string
}

// parseVCard reads the handful of vCard properties a contact needs
func parseVCard(content string) vCard {
	var c vCard
	var formatted string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		// drop parameters such as TEL;TYPE=cell
		name, _, _ := strings.Cut(strings.ToUpper(key), ";")
		value = strings.TrimSpace(value)
		switch name {
		case "N":
			parts := strings.Split(value, ";")
			c.last = strings.TrimSpace(parts[0])
			if len(parts) > 1 {
				c.first = strings.TrimSpace(parts[1])
			}
		case "FN":
			formatted = value
		case "EMAIL":
			if c.email == "" {
				c.email = value
			}
		case "TEL":
			if c.phone == "" {
				c.phone = value
			}
		case "ORG":
			c.org = strings.TrimSpace(strings.Split(value, ";")[0])
		}
	}
	if c.first == "" && c.last == "" && formatted != "" {
		c.first, c.last = splitName(formatted)
	}
	return c
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// IngestInput is one piece of unstructured content headed for a board
type IngestInput struct {
	BoardID  uuid.UUID
	Content  string
	Filename string
	MimeType string
	Source   models.Source
	ActorID  string
	Images   []llm.Image
}

// IngestResult reports the entity Ingest created. Exactly one of Card, Vendor, Contact is set.
type IngestResult struct {
	Kind       EntityKind      `json:"type"`
	Card       *models.Card    `json:"card,omitempty"`
	Vendor     *models.Vendor  `json:"vendor,omitempty"`
	Contact    *models.Contact `json:"contact,omitempty"`
	Confidence float64         `json:"confidence"`
	Fallback   bool            `json:"fallback"`
}

// Ingest classifies content as a task, vendor or contact and persists it in the
// board's workspace. Task cards start in INBOX and get a card.created activity.
func (e *Engine) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(in.Content) == "" && len(in.Images) == 0 {
		return nil, ErrEmptyContent
	}
	board, err := e.store.GetBoard(ctx, in.BoardID)
	if err != nil {
		return nil, persistenceErr("get board", err)
	}

	raw, gwErr := e.gateway.Call(ctx, llm.Request{
		Content:    in.Content,
		SchemaHint: llm.Classification,
		Images:     in.Images,
	})
	rec := NormalizeClassification(raw, gwErr, in.Content, Metadata{Filename: in.Filename, MimeType: in.MimeType})

	logger := e.logger.WithFields(log.Fields{
		"board_id":   board.ID,
		"type":       rec.Kind,
		"confidence": rec.Confidence,
		"fallback":   rec.Fallback,
	})
	if gwErr != nil {
		logger = logger.WithError(gwErr)
	}

	result := &IngestResult{Kind: rec.Kind, Confidence: rec.Confidence, Fallback: rec.Fallback}
	switch rec.Kind {
	case KindContact:
		contact := &models.Contact{
			WorkspaceID: board.WorkspaceID,
			FirstName:   rec.FirstName,
			LastName:    rec.LastName,
			Email:       rec.Email,
			Phone:       rec.Phone,
			Company:     rec.Company,
			Notes:       rec.Notes,
		}
		if err := e.store.CreateContact(ctx, contact); err != nil {
			return nil, persistenceErr("create contact", err)
		}
		result.Contact = contact
	case KindVendor:
		vendor := &models.Vendor{
			WorkspaceID: board.WorkspaceID,
			Name:        rec.Name,
			Tags:        datatypes.JSONSlice[string](rec.Tags),
			Notes:       rec.Notes,
		}
		if err := e.store.CreateVendor(ctx, vendor); err != nil {
			return nil, persistenceErr("create vendor", err)
		}
		result.Vendor = vendor
	default:
		card := &models.Card{
			BoardID:     board.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Source:      sourceOrDefault(in.Source),
		}
		if err := e.createCard(ctx, card, in.ActorID); err != nil {
			return nil, err
		}
		result.Card = card
	}
	logger.Info("intake content ingested")
	return result, nil
}

// createCard inserts an INBOX card with its card.created activity
func (e *Engine) createCard(ctx context.Context, card *models.Card, actorID string) error {
	card.IntakeStatus = models.IntakeInbox
	err := e.store.RunInTx(ctx, func(tx Store) error {
		if err := tx.CreateCard(ctx, card); err != nil {
			return err
		}
		return tx.AddActivity(ctx, newActivity(card.ID, actorID, models.ActivityCardCreated, map[string]interface{}{
			"source": card.Source,
			"title":  card.Title,
		}))
	})
	if err != nil {
		return persistenceErr("create card", err)
	}
	return nil
}

func sourceOrDefault(s models.Source) models.Source {
	if s == "" {
		return models.SourcePaste
	}
	return s
}

// ExtractTasksInput is meeting notes or a document headed for a board
type ExtractTasksInput struct {
	BoardID uuid.UUID
	Content string
	Source  models.Source
	ActorID string
}

// ExtractTasksResult lists the cards created from one document
type ExtractTasksResult struct {
	Cards      []models.Card `json:"cards"`
	Confidence float64       `json:"confidence"`
	Fallback   bool          `json:"fallback"`
}

// ExtractTasks turns content into up to MaxExtractedTasks INBOX cards. A task naming an
// existing card, or an earlier task from the same batch, as its parent is nested under it
// unless that would cross boards or form a cycle.
func (e *Engine) ExtractTasks(ctx context.Context, in ExtractTasksInput) (*ExtractTasksResult, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrEmptyContent
	}
	board, err := e.store.GetBoard(ctx, in.BoardID)
	if err != nil {
		return nil, persistenceErr("get board", err)
	}
	existing, err := e.store.ListCards(ctx, CardFilter{BoardID: board.ID, ExcludeStatus: models.TaskStatusDone})
	if err != nil {
		return nil, persistenceErr("list cards", err)
	}

	promptCtx := &llm.PromptContext{}
	for _, c := range existing {
		promptCtx.CandidateParents = append(promptCtx.CandidateParents, c.Title)
	}
	raw, gwErr := e.gateway.Call(ctx, llm.Request{
		Content:    in.Content,
		SchemaHint: llm.TaskExtraction,
		Context:    promptCtx,
	})
	list := NormalizeTasks(raw, gwErr, in.Content)
	if gwErr != nil {
		e.logger.WithError(gwErr).WithField("board_id", board.ID).Warn("task extraction fell back to heuristics")
	}

	result := &ExtractTasksResult{Confidence: list.Confidence, Fallback: list.Fallback}
	err = e.store.RunInTx(ctx, func(tx Store) error {
		byTitle := make(map[string]*models.Card, len(existing))
		for i := range existing {
			byTitle[normalizeName(existing[i].Title)] = &existing[i]
		}
		parents := make(map[uuid.UUID]bool)
		for _, task := range list.Tasks {
			card := &models.Card{
				BoardID:      board.ID,
				Title:        task.Title,
				Description:  task.Description,
				Priority:     task.Priority,
				Assignee:     task.Assignee,
				Source:       sourceOrDefault(in.Source),
				IntakeStatus: models.IntakeInbox,
			}
			if task.ParentTitle != "" {
				if parent, ok := byTitle[normalizeName(task.ParentTitle)]; ok && parent.BoardID == board.ID {
					card.ParentID = &parent.ID
				}
			}
			if err := tx.CreateCard(ctx, card); err != nil {
				return err
			}
			if card.ParentID != nil {
				// the card is new; the walk still guards against cycles already in the table
				if err := CheckAncestry(ctx, tx, card.ID, *card.ParentID); err != nil {
					if !errors.Is(err, ErrCyclicHierarchy) {
						return err
					}
					e.logger.WithField("card_id", card.ID).Warn("dropping parent from extracted task: cycle")
					if err := tx.UpdateCard(ctx, card.ID, map[string]interface{}{"parent_id": nil}); err != nil {
						return err
					}
					card.ParentID = nil
				} else {
					parents[*card.ParentID] = true
				}
			}
			if err := tx.AddActivity(ctx, newActivity(card.ID, in.ActorID, models.ActivityCardCreated, map[string]interface{}{
				"source": card.Source,
				"title":  card.Title,
			})); err != nil {
				return err
			}
			if _, taken := byTitle[normalizeName(card.Title)]; !taken {
				byTitle[normalizeName(card.Title)] = card
			}
			result.Cards = append(result.Cards, *card)
		}
		for id := range parents {
			if err := recountParent(ctx, tx, &id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceErr("create extracted tasks", err)
	}

	e.logger.WithFields(log.Fields{
		"board_id": board.ID,
		"count":    len(result.Cards),
		"fallback": result.Fallback,
	}).Info("tasks extracted")
	return result, nil
}

// ExtractReceiptInput is a receipt as text, an image, or both
type ExtractReceiptInput struct {
	WorkspaceID uuid.UUID
	Content     string
	Images      []llm.Image
	ActorID     string
}

// ReceiptError carries the partial extraction when a receipt needs manual entry
type ReceiptError struct {
	Record ReceiptRecord
	Err    error
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("receipt needs manual entry: %v", e.Err)
}

func (e *ReceiptError) Unwrap() error {
	return e.Err
}

// ExtractReceipt reads a receipt and records it as an expense. An unknown workspace
// returns ErrNotFound. An unusable amount returns a *ReceiptError wrapping
// ErrInvalidAmount and creates nothing.
func (e *Engine) ExtractReceipt(ctx context.Context, in ExtractReceiptInput) (*models.Expense, error) {
	if strings.TrimSpace(in.Content) == "" && len(in.Images) == 0 {
		return nil, ErrEmptyContent
	}
	ok, err := e.store.HasWorkspace(ctx, in.WorkspaceID)
	if err != nil {
		return nil, persistenceErr("check workspace", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	raw, gwErr := e.gateway.Call(ctx, llm.Request{
		Content:    in.Content,
		SchemaHint: llm.ReceiptExtraction,
		Images:     in.Images,
	})
	rec, err := NormalizeReceipt(raw, gwErr, in.Content)
	if err != nil {
		e.logger.WithError(err).WithField("workspace_id", in.WorkspaceID).Warn("receipt needs manual entry")
		return nil, &ReceiptError{Record: rec, Err: err}
	}

	vendors, err := e.store.ListVendors(ctx, in.WorkspaceID, nil)
	if err != nil {
		return nil, persistenceErr("list vendors", err)
	}
	expense := &models.Expense{
		WorkspaceID: in.WorkspaceID,
		VendorName:  rec.VendorName,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Date:        rec.Date,
		Category:    rec.Category,
		TaxAmount:   rec.TaxAmount,
		Items:       mustJSON(rec.Items),
		Confidence:  rec.Confidence,
		CreatedBy:   in.ActorID,
	}
	want := normalizeName(rec.VendorName)
	for i := range vendors {
		if want != "" && normalizeName(vendors[i].Name) == want {
			expense.VendorID = &vendors[i].ID
			break
		}
	}
	if err := e.store.CreateExpense(ctx, expense); err != nil {
		return nil, persistenceErr("create expense", err)
	}
	e.logger.WithFields(log.Fields{
		"expense_id": expense.ID,
		"amount":     expense.Amount,
		"fallback":   rec.Fallback,
	}).Info("receipt recorded")
	return expense, nil
}
