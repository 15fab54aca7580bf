package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/db"
	"github.com/sbenjam1n/tutorloop/internal/metrics"
	"github.com/sbenjam1n/tutorloop/internal/store"
)

var (
	migrationsDir   string
	metricsInterval time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the learner state schema",
	Long: `Create or upgrade the learner state schema for the configured backend.
SQLite databases migrate themselves when opened; postgres runs the embedded
migrations, or the *.sql files in --dir. Redis streams are created when configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		switch cfg.Store.Backend {
		case "postgres":
			fmt.Println("Connecting to PostgreSQL...")
			pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w\nSet TUTOR_DATABASE_URL", err)
			}
			defer pool.Close()

			fmt.Println("Running migrations...")
			if err := db.Migrate(ctx, pool, migrationsDir); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("PostgreSQL schema ready")
		default:
			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			st.Close()
			fmt.Printf("%s store ready\n", cfg.Store.Backend)
		}

		if cfg.RedisURL != "" {
			fmt.Println("Connecting to Redis...")
			q, err := connectQueue()
			if err != nil {
				return err
			}
			defer q.Close()
			if err := q.EnsureStreams(ctx); err != nil {
				return fmt.Errorf("redis stream setup failed: %w", err)
			}
			fmt.Println("Redis streams created")
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics for every learner",
	Long: `Serve Prometheus metrics for every learner. Learner gauges (reviews by verdict,
coaching runs, active and retired directives) are refreshed from the store on every
--interval. Per-command counters live in the process that ran the command: scrape
them from "tutor interactive --metrics-addr" or push them with --pushgateway.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		m := metrics.NewMetrics()
		if metricsInterval <= 0 {
			metricsInterval = 30 * time.Second
		}

		srv := metricsServer(cfg.MetricsAddr)

		go func() {
			observeAll(ctx, st, m)
			t := time.NewTicker(metricsInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					observeAll(ctx, st, m)
				}
			}
		}()
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()

		fmt.Printf("Serving metrics on %s/metrics\n", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// observeAll refreshes the per-learner gauges from the store.
func observeAll(ctx context.Context, st store.Store, m *metrics.Metrics) {
	ids, err := st.List(ctx)
	if err != nil {
		log.Printf("metrics: list learners: %v", err)
		return
	}
	for _, id := range ids {
		rec, err := st.Load(ctx, id)
		if err != nil {
			log.Printf("metrics: load %s: %v", id, err)
			continue
		}
		m.ObserveLearner(rec)
	}
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "directory of *.sql migrations (default: embedded)")
	metricsCmd.Flags().DurationVar(&metricsInterval, "interval", 30*time.Second, "how often learner gauges are refreshed")
}
