// Package app wires configuration, storage, services, and the HTTP server
// into one runnable process.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lordhacker756/vortex-api/internal/platform/config"
	authweb "github.com/Lordhacker756/vortex-api/internal/services/auth/api/web"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/ceremony"
	authsqlite "github.com/Lordhacker756/vortex-api/internal/services/auth/storage/sqlite"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/token"
	pollweb "github.com/Lordhacker756/vortex-api/internal/services/poll/api/web"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/ballot"
	pollsqlite "github.com/Lordhacker756/vortex-api/internal/services/poll/storage/sqlite"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/stream"
	"github.com/Lordhacker756/vortex-api/internal/web"
)

// Config holds process-level settings.
type Config struct {
	HTTPAddr             string        `env:"VORTEX_HTTP_ADDR"              envDefault:":9000"`
	AuthDBPath           string        `env:"VORTEX_AUTH_DB_PATH"           envDefault:"data/auth.db"`
	PollDBPath           string        `env:"VORTEX_POLL_DB_PATH"           envDefault:"data/poll.db"`
	CeremonyPurgePeriod  time.Duration `env:"VORTEX_CEREMONY_PURGE_PERIOD"  envDefault:"1m"`
	ShutdownGracePeriod  time.Duration `env:"VORTEX_SHUTDOWN_GRACE_PERIOD"  envDefault:"10s"`
	StreamResultInterval time.Duration `env:"VORTEX_STREAM_INTERVAL"        envDefault:"1s"`
}

// Run starts the service and blocks until the context is cancelled or a
// component fails.
func Run(ctx context.Context) error {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}

	// The signing secret has no default; a missing secret stops the
	// process here, before anything listens.
	tokenConfig, err := token.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	tokens := token.NewIssuer(tokenConfig)

	ceremonyConfig, err := ceremony.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	authStore, err := authsqlite.Open(cfg.AuthDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = authStore.Close() }()

	pollStore, err := pollsqlite.Open(cfg.PollDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = pollStore.Close() }()

	ceremonies := ceremony.NewService(authStore, authStore, authStore, tokens, ceremonyConfig)
	engine := ballot.NewEngine(pollStore)
	streamer := stream.NewStreamer(engine, cfg.StreamResultInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/healthchecker", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, "service is healthy", nil)
	})
	authweb.NewHandler(ceremonies, tokens.TTL()).Register(mux)
	pollweb.NewHandler(engine, streamer).Register(mux, web.RequireAuth(tokens))

	handler := web.CORS(web.LoadCORSConfigFromEnv())(web.Trace("vortex-api")(mux))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Expired ceremonies are already invisible to take; the janitor keeps
	// the table from accumulating abandoned attempts.
	group.Go(func() error {
		ticker := time.NewTicker(cfg.CeremonyPurgePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if err := authStore.DeleteExpiredCeremonies(groupCtx, time.Now().UTC()); err != nil {
					log.Printf("purge expired ceremonies: %v", err)
				}
			}
		}
	})

	return group.Wait()
}
