// Package handlers implements the intake HTTP endpoints.
package handlers

import (
	log "github.com/sirupsen/logrus"

	"github.com/kutbudev/boardroom/internal/dedupe"
	"github.com/kutbudev/boardroom/internal/intake"
)

// Handler serves the v1 API
type Handler struct {
	engine  *intake.Engine
	store   intake.Store
	deduper dedupe.Deduper
	logger  *log.Logger
}

// New creates a Handler. A nil deduper processes every trigger.
func New(engine *intake.Engine, store intake.Store, deduper dedupe.Deduper, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Handler{engine: engine, store: store, deduper: deduper, logger: logger}
}
