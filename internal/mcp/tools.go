package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/pkg/models"
)

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "find_similar_tasks",
		Description: `Find recent cards on a board that look like the given title and description.

REQUIRED: boardId, title
OPTIONAL: description, excludeId

Only cards created in the last 30 days that are not DONE are compared. Returns at most 5
matches scoring at least 60%.`,
		Annotations: &mcp.ToolAnnotations{
			Title:         "Find Similar Tasks",
			ReadOnlyHint:  true,
			OpenWorldHint: boolPtr(false),
		},
	}, s.handleFindSimilar)

	mcp.AddTool(server, &mcp.Tool{
		Name: "ingest_content",
		Description: `Classify free-form content and create a card, vendor or contact.

REQUIRED: boardId, content
OPTIONAL: filename, mimeType, source (paste|document|email|receipt|meeting)

vCards become contacts. Content is never dropped: when the model is unavailable a card
is created from the first line.`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Ingest Content",
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		},
	}, s.handleIngest)

	mcp.AddTool(server, &mcp.Tool{
		Name: "triage_card",
		Description: `Suggest a parent card, labels and vendor/contact links for a card in the INBOX.

REQUIRED: cardId

Suggestions at or above the auto-place threshold are applied immediately.`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Triage Card",
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(true),
		},
	}, s.handleTriage)

	mcp.AddTool(server, &mcp.Tool{
		Name: "accept_suggestion",
		Description: `Apply the stored suggestion for a card and mark it PLACED.

REQUIRED: cardId
OPTIONAL: actorId (defaults to the agent)

Fails if the card is already placed or the suggested parent would create a cycle.`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Accept Suggestion",
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(false),
		},
	}, s.handleAccept)
}

// FindSimilarInput is the find_similar_tasks payload
type FindSimilarInput struct {
	BoardID     string `json:"boardId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ExcludeID   string `json:"excludeId,omitempty"`
}

func (s *Server) handleFindSimilar(ctx context.Context, req *mcp.CallToolRequest, input FindSimilarInput) (*mcp.CallToolResult, interface{}, error) {
	boardID, err := parseID("boardId", input.BoardID)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, nil, errors.New("'title' parameter is REQUIRED")
	}
	excludeID := uuid.Nil
	if input.ExcludeID != "" {
		if excludeID, err = parseID("excludeId", input.ExcludeID); err != nil {
			return nil, nil, err
		}
	}

	matches, err := s.engine.FindSimilar(ctx, input.Title, input.Description, boardID, excludeID)
	if err != nil {
		return nil, nil, err
	}
	if matches == nil {
		matches = []intake.SimilarCard{}
	}
	result, err := textResult(map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
	return result, nil, err
}

// IngestInput is the ingest_content payload
type IngestInput struct {
	BoardID  string `json:"boardId"`
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Source   string `json:"source,omitempty"`
}

func (s *Server) handleIngest(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, interface{}, error) {
	boardID, err := parseID("boardId", input.BoardID)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.engine.Ingest(ctx, intake.IngestInput{
		BoardID:  boardID,
		Content:  input.Content,
		Filename: input.Filename,
		MimeType: input.MimeType,
		Source:   models.Source(strings.ToLower(strings.TrimSpace(input.Source))),
		ActorID:  AgentActor,
	})
	if err != nil {
		return nil, nil, err
	}
	result, err := textResult(res)
	return result, nil, err
}

// CardInput names a single card
type CardInput struct {
	CardID  string `json:"cardId"`
	ActorID string `json:"actorId,omitempty"`
}

func (s *Server) handleTriage(ctx context.Context, req *mcp.CallToolRequest, input CardInput) (*mcp.CallToolResult, interface{}, error) {
	cardID, err := parseID("cardId", input.CardID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.engine.Triage(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	result, err := textResult(res)
	return result, nil, err
}

func (s *Server) handleAccept(ctx context.Context, req *mcp.CallToolRequest, input CardInput) (*mcp.CallToolResult, interface{}, error) {
	cardID, err := parseID("cardId", input.CardID)
	if err != nil {
		return nil, nil, err
	}
	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		actor = AgentActor
	}

	res, err := s.engine.Accept(ctx, cardID, actor)
	if errors.Is(err, intake.ErrNotAwaitingReview) {
		return nil, nil, fmt.Errorf("card %s is already placed", cardID)
	}
	if err != nil {
		return nil, nil, err
	}
	result, err := textResult(res)
	return result, nil, err
}

// AgentActor attributes writes made by MCP clients
const AgentActor = "agent:mcp"

func parseID(name, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, fmt.Errorf("'%s' parameter is REQUIRED", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}
