package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"photoreviver/internal/cache"
	"photoreviver/internal/logger"
)

// httpService runs the API server under the supervisor.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// ctx is already cancelled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string { return "http-server" }

// cacheGCService periodically reclaims badger value log space.
type cacheGCService struct {
	cache    *cache.Cache
	interval time.Duration
	logger   *logger.Logger
}

func (c *cacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.cache.RunGC(); err != nil {
				c.logger.Warning("Cache garbage collection failed: %v", err)
			}
		}
	}
}

func (c *cacheGCService) String() string { return "cache-gc" }
