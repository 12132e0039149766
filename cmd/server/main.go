/*
main.go - Server entry point

STARTUP SEQUENCE:
  1. Parse flags and environment configuration
  2. Open the SQLite store (migrations run automatically)
  3. Wire the service, handlers, and router
  4. Start the pass-expiry scheduler
  5. Serve HTTP until SIGINT/SIGTERM, then shut down gracefully

CONFIGURATION:
  Flags win over environment variables:
    -port / STUDIO_PORT            listen port (default 8080)
    -db   / STUDIO_DB_PATH         SQLite file (default studio.db)
    STUDIO_SWEEP_INTERVAL          pass-expiry sweep cadence (default 1h)
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/atelier/studio-engine/api"
	"github.com/atelier/studio-engine/roster"
	"github.com/atelier/studio-engine/store/sqlite"
)

type config struct {
	Port          string        `envconfig:"PORT" default:"8080"`
	DBPath        string        `envconfig:"DB_PATH" default:"studio.db"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
}

func main() {
	var cfg config
	if err := envconfig.Process("STUDIO", &cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	port := flag.String("port", cfg.Port, "HTTP listen port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database at %s: %v", *dbPath, err)
	}
	defer store.Close()

	service := roster.NewService(store)
	handler := api.NewHandler(store, service)
	router := api.NewRouter(handler)

	scheduler := api.NewExpiryScheduler(service, cfg.SweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🎵 Studio engine listening on :%s (db: %s)", *port, *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("👋 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}
