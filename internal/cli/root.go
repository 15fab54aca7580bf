package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/config"
	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/gate"
	"github.com/sbenjam1n/tutorloop/internal/llm"
	"github.com/sbenjam1n/tutorloop/internal/metrics"
	"github.com/sbenjam1n/tutorloop/internal/queue"
	"github.com/sbenjam1n/tutorloop/internal/session"
	"github.com/sbenjam1n/tutorloop/internal/store"
)

var (
	cfg     *config.Config
	flags   config.Config
	rootCmd = &cobra.Command{
		Use:   "tutor",
		Short: "Adaptive coding tutor: four agents, four coaches, one learner record",
		Long: `tutor walks a learner through a build-first curriculum.

A Curriculum agent paces the path, a Teacher explains, a Challenger assigns tasks and a
Reviewer judges the code. Every few reviews their coaches read the learner's results
and adjust how each agent behaves.

Start here:
  tutor onboard --learner ada --name "Ada"
  tutor task
  tutor review

The learner's code lives in --project (default: the current directory).`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.Learner, "learner", "l", "", "learner ID (env TUTOR_LEARNER)")
	pf.StringVarP(&flags.ProjectRoot, "project", "p", "", "learner's project directory (env TUTOR_PROJECT_ROOT)")
	pf.StringVar(&flags.Catalog, "catalog", "", "curriculum YAML file (default: built-in build path)")
	pf.StringVar(&flags.Store.Backend, "store", "", "state backend: sqlite, postgres or memory")
	pf.StringVar(&flags.Store.Path, "db-path", "", "sqlite database file")
	pf.StringVar(&flags.Store.DatabaseURL, "database-url", "", "postgres connection string")
	pf.StringVar(&flags.RedisURL, "redis-url", "", "publish activity to Redis streams")
	pf.StringVar(&flags.PushGateway, "pushgateway", "", "push each command's metrics to this Prometheus pushgateway")
	pf.StringVar(&flags.LLM.Backend, "llm", "", "text generation backend: anthropic, ollama or disabled")
	pf.StringVar(&flags.LLM.Model, "model", "", "model identifier")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(lessonCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(directivesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(gardenerCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(metricsCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load(&flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

// env bundles the session with the resources it holds open.
type env struct {
	s     *session.Session
	store store.Store
	queue *queue.Queue
}

func (e *env) Close() {
	if cfg.PushGateway != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metrics.Push(ctx, cfg.PushGateway, "tutor"); err != nil {
			log.Printf("push metrics to %s: %v", cfg.PushGateway, err)
		}
		cancel()
	}
	if e.queue != nil {
		e.queue.Close()
	}
	e.store.Close()
}

// openSession wires a session from the loaded configuration. A broken LLM
// setup is not fatal: commands that need an agent report it when they run.
func openSession(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e := &env{store: st}

	gen, err := llm.NewGenerator(cfg.LLM)
	if err != nil {
		genErr := err
		gen = llm.GeneratorFunc(func(context.Context, string, string) (string, error) {
			return "", genErr
		})
	}

	catalog, err := curriculum.Load(cfg.Catalog)
	if err != nil {
		st.Close()
		return nil, err
	}

	var pub session.Publisher
	if cfg.RedisURL != "" {
		rdb, err := queue.ConnectRedis(cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("%w\nSet TUTOR_REDIS_URL or unset it to disable publishing", err)
		}
		e.queue = queue.New(rdb)
		if err := e.queue.EnsureStreams(ctx); err != nil {
			log.Printf("redis streams unavailable, publishing disabled: %v", err)
			e.queue.Close()
			e.queue = nil
		} else {
			pub = e.queue
		}
	}

	e.s, err = session.New(session.Options{
		Store:        st,
		Generator:    gen,
		Catalog:      catalog,
		Runner:       gate.ExecRunner{Timeout: cfg.Checks.Timeout, Shell: cfg.Checks.Shell},
		Metrics:      metrics.NewMetrics(),
		ProjectRoot:  cfg.ProjectRoot,
		Cadence:      cfg.Coaching.Cadence,
		ExpiryCycles: cfg.Coaching.ExpiryCycles,
		Window:       cfg.Coaching.Window,
		Publisher:    pub,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// withSession opens a session for one command and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session, learner string) error) error {
	learner, err := learnerID()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e.s, learner)
}

func learnerID() (string, error) {
	if cfg.Learner == "" {
		return "", fmt.Errorf("no learner selected\nPass --learner or set TUTOR_LEARNER")
	}
	return cfg.Learner, nil
}
