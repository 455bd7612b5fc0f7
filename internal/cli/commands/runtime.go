package commands

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kutbudev/boardroom/internal/intake"
	"github.com/kutbudev/boardroom/internal/llm"
	"github.com/kutbudev/boardroom/pkg/config"
	"github.com/kutbudev/boardroom/pkg/repository"
)

// runtime is the wiring shared by serve and mcp
type runtime struct {
	cfg    *config.Config
	logger *log.Logger
	db     *gorm.DB
	store  *repository.Store
	engine *intake.Engine
}

func (r *runtime) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newLogger(cfg config.LogConfig) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}
	logger.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger, nil
}

// bootstrap loads config and opens the database
func bootstrap() (*config.Config, *log.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := repository.NewDatabase(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database ready")
	return cfg, logger, db, nil
}

func newRuntime() (*runtime, error) {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	logger.WithField("provider", provider.Name()).Info("language model configured")

	store := repository.NewStore(db)
	engine := intake.NewEngine(store, llm.NewGateway(provider, cfg.LLM.Timeout, logger),
		intake.WithLogger(logger),
		intake.WithThresholds(intake.Thresholds{
			Suggest:   cfg.Intake.SuggestThreshold,
			AutoPlace: cfg.Intake.AutoPlaceThreshold,
		}),
	)
	return &runtime{cfg: cfg, logger: logger, db: db, store: store, engine: engine}, nil
}
