// Package api is the intakectl client for the boardroom HTTP API.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/kutbudev/boardroom/internal/config"
	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/pkg/models"
)

// Client talks to a boardroom server
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	ActorID    string
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the server
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// NewClient creates a client from cfg
func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: cfg.APIURL,
		ActorID: cfg.ActorID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest sends body as JSON and decodes the response into out when it is non-nil
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(respBody)
		var payload struct {
			Error string `json:"error"`
		}
		if sonic.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListCards lists a board's cards, optionally filtered by intake status
func (c *Client) ListCards(ctx context.Context, boardID uuid.UUID, status models.IntakeStatus) ([]models.Card, error) {
	endpoint := "/boards/" + boardID.String() + "/cards"
	if status != "" {
		endpoint += "?" + url.Values{"intake_status": {string(status)}}.Encode()
	}
	var cards []models.Card
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetCard fetches one card
func (c *Client) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := c.makeRequest(ctx, http.MethodGet, "/cards/"+id.String(), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Accept applies the stored suggestion for a card
func (c *Client) Accept(ctx context.Context, id uuid.UUID) (*intake.AcceptResult, error) {
	var res intake.AcceptResult
	if err := c.makeRequest(ctx, http.MethodPost, "/cards/"+id.String()+"/accept", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Triage triggers intake triage for a card
func (c *Client) Triage(ctx context.Context, id uuid.UUID) (*intake.TriageResult, error) {
	var res intake.TriageResult
	if err := c.makeRequest(ctx, http.MethodPost, "/intake/cards/"+id.String()+"/triage", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SimilarMatch is one duplicate candidate
type SimilarMatch struct {
	Card              models.Card `json:"task" yaml:"task"`
	SimilarityPercent int         `json:"similarity_percent" yaml:"similarity_percent"`
}

// FindSimilar asks the server for likely duplicates
func (c *Client) FindSimilar(ctx context.Context, boardID uuid.UUID, title, description string) ([]SimilarMatch, error) {
	body := map[string]string{"title": title, "description": description}
	var res struct {
		Matches []SimilarMatch `json:"matches"`
	}
	if err := c.makeRequest(ctx, http.MethodPost, "/boards/"+boardID.String()+"/similar", body, &res); err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// Recount recomputes child counts on a board and returns how many cards changed
func (c *Client) Recount(ctx context.Context, boardID uuid.UUID) (int, error) {
	var res struct {
		Changed int `json:"changed"`
	}
	if err := c.makeRequest(ctx, http.MethodPost, "/boards/"+boardID.String()+"/recount", nil, &res); err != nil {
		return 0, err
	}
	return res.Changed, nil
}
