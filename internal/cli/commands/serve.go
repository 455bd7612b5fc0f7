package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kutbudev/boardroom/api"
	"github.com/kutbudev/boardroom/api/handlers"
	"github.com/kutbudev/boardroom/internal/dedupe"
	"github.com/kutbudev/boardroom/internal/tracing"
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the intake HTTP API",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.Tracing.Enabled {
				shutdown := tracing.Setup(rt.cfg.Tracing.ServiceName)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						rt.logger.WithError(err).Warn("tracer shutdown failed")
					}
				}()
			}

			deduper, closeDeduper, err := openDeduper(ctx, rt.cfg.Redis.URL, rt.cfg.Redis.TTL, rt.logger)
			if err != nil {
				return err
			}
			defer closeDeduper()

			if rt.logger.GetLevel() < log.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(handlers.New(rt.engine, rt.store, deduper, rt.logger), rt.logger)
			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.WithField("addr", srv.Addr).Info("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}

// openDeduper uses Redis when a URL is configured, otherwise an in-process deduper
func openDeduper(ctx context.Context, url string, ttl time.Duration, logger *log.Logger) (dedupe.Deduper, func(), error) {
	if url == "" {
		logger.Info("redis not configured, deduplicating triggers in memory")
		return dedupe.NewMemoryDeduper(ttl), func() {}, nil
	}
	r, err := dedupe.Open(ctx, url, ttl)
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			logger.WithError(err).Warn("redis close failed")
		}
	}, nil
}
