// Package intake turns unstructured content into cards, vendors, contacts and
// expenses, and runs AI triage for new cards: placement suggestions gated by
// confidence, and the accept transaction that applies them.
package intake

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kutbudev/boardroom/internal/llm"
)

// SystemActor is recorded as the actor of automatic placements
const SystemActor = "system:intake"

// Gateway is the language model call used by the pipeline. *llm.Gateway implements it.
type Gateway interface {
	Call(ctx context.Context, req llm.Request) (string, error)
}

// Thresholds gate triage outcomes
type Thresholds struct {
	// Suggest moves a card to SUGGESTED
	Suggest float64
	// AutoPlace accepts the suggestion without review
	AutoPlace float64
}

// DefaultThresholds returns the production thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{Suggest: 0.85, AutoPlace: 0.92}
}

// Engine wires the intake pipeline to a store and a gateway
type Engine struct {
	store      Store
	gateway    Gateway
	logger     *log.Logger
	thresholds Thresholds
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithThresholds overrides DefaultThresholds
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. A nil gateway makes every extraction use fallbacks.
func NewEngine(store Store, gateway Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		gateway:    gateway,
		logger:     log.StandardLogger(),
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.gateway == nil {
		e.gateway = llm.NewGateway(nil, 0, e.logger)
	}
	return e
}

// Thresholds returns the active thresholds
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}
