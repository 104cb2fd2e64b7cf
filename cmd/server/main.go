/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Learnify state engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Configure logging
  3. Open the audit store
  4. Build the engine state (all stores empty)
  5. Configure HTTP router and caller resolution
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      Audit database path (overrides AUDIT_DB_PATH)
           Use ":memory:" for an in-memory audit trail

ENVIRONMENT:
  PORT, AUDIT_DB_PATH, AUTH_MODE (header|jwt), JWT_SECRET, LOG_LEVEL,
  CORS_ORIGINS (comma-separated). See config/config.go.

STATE LIFETIME:
  Feature state is in-memory and lost on restart. Only the audit trail
  can outlive the process, when -db points at a file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the audit store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - app/state.go: Engine state
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnify/state-engine/api"
	"github.com/learnify/state-engine/app"
	"github.com/learnify/state-engine/config"
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/store/sqlite"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.AuditDBPath, "Audit database path")
	flag.Parse()

	// Logging
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.Level())

	// Audit store
	audit, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize audit database: %v", err)
	}
	defer audit.Close()

	// Engine state and handler
	state := app.NewState()
	handler := api.NewHandler(state, generic.SystemClock{}, audit, log)

	var resolver api.CallerResolver = api.HeaderResolver{}
	if cfg.AuthMode == config.AuthJWT {
		resolver = api.JWTResolver{Secret: []byte(cfg.JWTSecret)}
	} else {
		log.Warn("AUTH_MODE=header: callers are trusted to name themselves, do not expose this server")
	}

	router := api.NewRouter(handler, resolver, cfg.CORSOrigins)

	sampler := api.NewStateSampler(state, log)
	sampler.Start()
	defer sampler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":      *port,
			"auth_mode": cfg.AuthMode,
			"audit_db":  *dbPath,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
