package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SchemaHint names the JSON shape the model is asked to return
type SchemaHint string

const (
	TaskExtraction    SchemaHint = "task-extraction"
	ReceiptExtraction SchemaHint = "receipt-extraction"
	Classification    SchemaHint = "classification"
)

// PromptContext gives the model the existing entities it may refer to
type PromptContext struct {
	CandidateParents []string
	KnownVendors     []string
	KnownContacts    []string
}

func (p *PromptContext) empty() bool {
	return p == nil || (len(p.CandidateParents) == 0 && len(p.KnownVendors) == 0 && len(p.KnownContacts) == 0)
}

// Request is one gateway call
type Request struct {
	Content    string
	SchemaHint SchemaHint
	Context    *PromptContext
	Images     []Image
}

// Gateway sends intake content to the configured provider with a bounded timeout.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	logger   *log.Logger
}

// NewGateway wraps a provider. A nil provider behaves like the offline provider.
func NewGateway(provider Provider, timeout time.Duration, logger *log.Logger) *Gateway {
	if provider == nil {
		provider = offlineProvider{reason: "no language model configured"}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{provider: provider, timeout: timeout, logger: logger}
}

// Name reports the underlying provider
func (g *Gateway) Name() string {
	return g.provider.Name()
}

// Call returns the raw model text. Every failure is wrapped in ErrUnavailable;
// callers route it to fallback extraction. There is no retry.
func (g *Gateway) Call(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("github.com/kutbudev/boardroom/internal/llm").Start(ctx, "llm.gateway.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.provider.Name()),
		attribute.String("llm.schema_hint", string(req.SchemaHint)),
		attribute.Int("llm.content_length", len(req.Content)),
	)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.provider.Complete(ctx, BuildPrompt(req), CompletionOpts{
		Format:      "json",
		System:      systemPrompt(req.SchemaHint),
		Temperature: 0,
		MaxTokens:   2048,
		Images:      req.Images,
	})
	fields := log.Fields{
		"provider":    g.provider.Name(),
		"schema_hint": req.SchemaHint,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		g.logger.WithFields(fields).WithError(err).Warn("language model call failed")
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(out) == "" {
		span.SetStatus(codes.Error, "empty response")
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	g.logger.WithFields(fields).Debug("language model call succeeded")
	return out, nil
}

const taskSystemPrompt = `You extract actionable tasks from unstructured text such as meeting notes, emails and documents.
Return ONLY a JSON object:
{"tasks": [{"title": "short imperative title", "description": "details", "priority": "HIGH|MEDIUM|LOW", "assignee": "name or empty", "parent": "existing parent task title or empty"}], "confidence": 0.0-1.0}`

const receiptSystemPrompt = `You read receipts and invoices. Extract the purchase.
Return ONLY a JSON object:
{"vendorName": "...", "amount": 0.00, "currency": "USD", "date": "YYYY-MM-DD", "category": "...", "items": [{"description": "...", "quantity": 1, "amount": 0.00}], "taxAmount": 0.00, "confidence": 0.0-1.0}
Use the grand total for amount. If the total is unreadable use null.`

const classifySystemPrompt = `You classify incoming content for a project management workspace as exactly one of: task, vendor, contact.
- task: work to be done
- vendor: a company that sells goods or services
- contact: a person
Return ONLY a JSON object:
{"type": "task|vendor|contact", "title": "...", "description": "...", "firstName": "...", "lastName": "...", "email": "...", "phone": "...", "company": "...", "name": "...", "tags": ["..."],
 "summary": "one sentence", "labels": ["..."], "parent": "title of best parent task or empty", "vendors": ["known vendor names mentioned"], "contacts": ["known contact names mentioned"], "confidence": 0.0-1.0}
Only use parent, vendor and contact names from the lists you are given.`

func systemPrompt(hint SchemaHint) string {
	switch hint {
	case ReceiptExtraction:
		return receiptSystemPrompt
	case Classification:
		return classifySystemPrompt
	default:
		return taskSystemPrompt
	}
}

// BuildPrompt renders the user prompt, including any known-entity context
func BuildPrompt(req Request) string {
	var b strings.Builder
	if !req.Context.empty() {
		writeList(&b, "Candidate parent tasks", req.Context.CandidateParents)
		writeList(&b, "Known vendors", req.Context.KnownVendors)
		writeList(&b, "Known contacts", req.Context.KnownContacts)
		b.WriteString("\n")
	}
	b.WriteString("CONTENT:\n")
	b.WriteString(req.Content)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
