/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment), apply command-line flags
  2. Open the store (SQLite or Postgres)
  3. Build domain services and optionally seed demo data
  4. Create the default policy if none exists, then cache it
  5. Configure HTTP router and start with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -seed    Seed demo accounts and policy (overrides SEED)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Local development with demo data
  ./server -seed

  # Postgres
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/account"
	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/seed"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/sqlite"
)

type store interface {
	generic.TxStore
	Close() error
}

func openStore(cfg *config.Config) (store, error) {
	if cfg.DBDriver == "postgres" {
		return postgres.New(cfg.DatabaseURL, postgres.Options{})
	}
	return sqlite.New(cfg.DBPath)
}

// loadPolicy makes sure a policy exists and is cached. A fresh database
// without -seed gets the default rules so scans work from the first
// request.
func loadPolicy(ctx context.Context, svc *policy.Service) (generic.PolicyConfig, error) {
	p, created, err := svc.Bootstrap(ctx, policy.DefaultRules())
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	if created {
		log.Printf("Created default policy (check-in %s-%s, dismissal %s)", p.StartTime, p.EndTime, p.DismissalTime)
	}
	return p, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	doSeed := flag.Bool("seed", cfg.Seed, "Seed demo data")
	flag.Parse()
	cfg.Port, cfg.DBPath, cfg.Seed = *port, *dbPath, *doSeed

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	// Domain services
	clock := generic.SystemClock{}
	ledger := attendance.NewLedger(st, clock, loc)
	workflow := leave.NewWorkflow(st, ledger, clock)
	quota := leave.NewQuota(st)
	policySvc := policy.NewService(st, clock, []byte(cfg.QRSecret))
	accounts := account.NewService(st, notify.NewLogNotifier(nil), clock)

	ctx := context.Background()
	if cfg.Seed {
		s := &seed.Seeder{Store: st, Accounts: accounts, Policy: policySvc, Leaves: workflow, Ledger: ledger}
		if _, err := s.Run(ctx); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
	}

	if _, err := loadPolicy(ctx, policySvc); err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}

	handler := api.NewHandler(api.Services{
		Ledger:   ledger,
		Leaves:   workflow,
		Policy:   policySvc,
		Reports:  report.NewReporter(st, ledger, quota, clock),
		Accounts: accounts,
	}, api.NewTokens([]byte(cfg.JWTSecret), cfg.JWTExpiration, clock))

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%s (%s, %s)", cfg.Port, cfg.DBDriver, loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
