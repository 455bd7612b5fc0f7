package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/models"
)

// ImageInput is a base64 encoded attachment
type ImageInput struct {
	MimeType string `json:"mime_type" binding:"required"`
	Data     []byte `json:"data" binding:"required"`
}

func toImages(in []ImageInput) []llm.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]llm.Image, 0, len(in))
	for _, img := range in {
		out = append(out, llm.Image{MimeType: img.MimeType, Data: img.Data})
	}
	return out
}

// IngestRequest DTO for free-form content
type IngestRequest struct {
	BoardID  uuid.UUID     `json:"board_id" binding:"required"`
	Content  string        `json:"content"`
	Filename string        `json:"filename"`
	MimeType string        `json:"mime_type"`
	Source   models.Source `json:"source"`
	Images   []ImageInput  `json:"images"`
}

// Ingest classifies content into a task, vendor or contact
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.Ingest(c.Request.Context(), intake.IngestInput{
		BoardID:  req.BoardID,
		Content:  req.Content,
		Filename: req.Filename,
		MimeType: req.MimeType,
		Source:   req.Source,
		ActorID:  c.GetHeader(ActorHeader),
		Images:   toImages(req.Images),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ExtractTasksRequest DTO for a document holding several tasks
type ExtractTasksRequest struct {
	Content string        `json:"content"`
	Source  models.Source `json:"source"`
}

// ExtractTasks creates one inbox card per task found in the document
func (h *Handler) ExtractTasks(c *gin.Context) {
	boardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req ExtractTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.engine.ExtractTasks(c.Request.Context(), intake.ExtractTasksInput{
		BoardID: boardID,
		Content: req.Content,
		Source:  req.Source,
		ActorID: c.GetHeader(ActorHeader),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ReceiptRequest DTO for receipt text or images
type ReceiptRequest struct {
	WorkspaceID uuid.UUID    `json:"workspace_id" binding:"required"`
	Content     string       `json:"content"`
	Images      []ImageInput `json:"images"`
}

// ExtractReceipt turns a receipt into an expense
func (h *Handler) ExtractReceipt(c *gin.Context) {
	var req ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := h.engine.ExtractReceipt(c.Request.Context(), intake.ExtractReceiptInput{
		WorkspaceID: req.WorkspaceID,
		Content:     req.Content,
		Images:      toImages(req.Images),
		ActorID:     c.GetHeader(ActorHeader),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

// SimilarRequest DTO for the duplicate lookup
type SimilarRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	ExcludeID   uuid.UUID `json:"exclude_id"`
}

// FindSimilar lists recent cards on the board that look like the given text
func (h *Handler) FindSimilar(c *gin.Context) {
	boardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matches, err := h.engine.FindSimilar(c.Request.Context(), req.Title, req.Description, boardID, req.ExcludeID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if matches == nil {
		matches = []intake.SimilarCard{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
