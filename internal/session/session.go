// Package session runs learner commands against the agents, the coaches and the
// learner state store.
//
// Every command reads the latest record, calls the agents outside any write, and
// then commits at most one store.Update. A command that fails or is cancelled
// before that update leaves the learner's state exactly as it was.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sbenjam1n/tutorloop/internal/agent"
	"github.com/sbenjam1n/tutorloop/internal/aggregate"
	"github.com/sbenjam1n/tutorloop/internal/coach"
	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/gate"
	"github.com/sbenjam1n/tutorloop/internal/llm"
	"github.com/sbenjam1n/tutorloop/internal/metrics"
	"github.com/sbenjam1n/tutorloop/internal/queue"
	"github.com/sbenjam1n/tutorloop/internal/store"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
	"github.com/sbenjam1n/tutorloop/internal/workspace"
)

var (
	// ErrNoTask is returned when a review is requested with no task assigned.
	ErrNoTask = errors.New("no active task")
	// ErrNothingToReview is returned when there is no code to review.
	ErrNothingToReview = errors.New("no code to review")
	// ErrCurriculumComplete is returned when every project is already done.
	ErrCurriculumComplete = errors.New("curriculum complete")
)

// Publisher receives committed activity. *queue.Queue implements it.
type Publisher interface {
	PushEvent(ctx context.Context, msg queue.EventMessage) (string, error)
	PushDirectives(ctx context.Context, msg queue.DirectiveMessage) (string, error)
}

// Options wires a Session.
type Options struct {
	Store store.Store
	// Generator backs the primary agents. Nil makes every agent command fail
	// with llm.ErrNotConfigured.
	Generator llm.Generator
	Catalog   *curriculum.Catalog
	Runner    gate.Runner
	Publisher Publisher
	Metrics   *metrics.Metrics

	// ProjectRoot is the learner's code directory.
	ProjectRoot string
	Files       workspace.Options
	TreeDepth   int

	Cadence      int
	ExpiryCycles int
	Window       aggregate.Window

	Now func() time.Time
}

// Session is the core entry point for one process.
type Session struct {
	store     store.Store
	agents    *agent.Set
	coaches   []*coach.Coach
	cadence   coach.Cadence
	window    aggregate.Window
	catalog   *curriculum.Catalog
	runner    gate.Runner
	publisher Publisher
	metrics   *metrics.Metrics

	projectRoot string
	files       workspace.Options
	treeDepth   int
	now         func() time.Time
}

// New creates a Session.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("new session: no store")
	}
	if opts.Catalog == nil {
		cat, err := curriculum.Default()
		if err != nil {
			return nil, fmt.Errorf("new session: %w", err)
		}
		opts.Catalog = cat
	}
	gen := opts.Generator
	if gen == nil {
		gen = llm.GeneratorFunc(func(context.Context, string, string) (string, error) {
			return "", llm.ErrNotConfigured
		})
	}
	if opts.Runner == nil {
		opts.Runner = gate.ExecRunner{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TreeDepth <= 0 {
		opts.TreeDepth = 3
	}
	if opts.Files.MaxFiles == 0 {
		opts.Files.MaxFiles = 20
	}
	if opts.Files.MaxFileBytes == 0 {
		opts.Files.MaxFileBytes = 32 << 10
	}
	if opts.ProjectRoot == "" {
		opts.ProjectRoot = "."
	}

	return &Session{
		store:       opts.Store,
		agents:      agent.NewSet(gen),
		coaches:     coach.All(coach.Options{ExpiryCycles: opts.ExpiryCycles, Now: opts.Now}),
		cadence:     coach.Cadence{Interval: opts.Cadence},
		window:      opts.Window,
		catalog:     opts.Catalog,
		runner:      opts.Runner,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		projectRoot: opts.ProjectRoot,
		files:       opts.Files,
		treeDepth:   opts.TreeDepth,
		now:         opts.Now,
	}, nil
}

// Catalog returns the curriculum the session runs on.
func (s *Session) Catalog() *curriculum.Catalog { return s.catalog }

// ProjectRoot returns the learner's code directory.
func (s *Session) ProjectRoot() string { return s.projectRoot }

func (s *Session) load(ctx context.Context, learnerID string) (*tutor.LearnerRecord, curriculum.Project, error) {
	rec, err := s.store.Load(ctx, learnerID)
	if err != nil {
		return nil, curriculum.Project{}, err
	}
	if rec.Profile.CurrentProject == "" {
		if len(rec.Profile.ProjectsCompleted) > 0 {
			return rec, curriculum.Project{}, ErrCurriculumComplete
		}
		return rec, curriculum.Project{}, tutor.ErrNotOnboarded
	}
	project, err := s.catalog.Get(rec.Profile.CurrentProject)
	if err != nil {
		return rec, curriculum.Project{}, fmt.Errorf("learner %s: %w", learnerID, err)
	}
	return rec, project, nil
}

// snapshot aggregates the whole task log at the learner's current cycle.
func (s *Session) snapshot(rec *tutor.LearnerRecord) tutor.PerformanceSnapshot {
	snap := aggregate.Aggregate(rec.Events, s.window)
	snap.Cycle = rec.ReviewClock
	return snap
}

// request builds the agent request shared by every command.
func (s *Session) request(rec *tutor.LearnerRecord, project curriculum.Project) agent.Request {
	return agent.Request{
		Profile:    rec.Profile,
		Project:    project,
		Snapshot:   s.snapshot(rec),
		Directives: directive.Live(rec.Active, rec.ReviewClock),
		Completed:  completedTasks(rec, project.ID),
		Task:       rec.Profile.CurrentTask,
	}
}

// withWorkspace adds the project tree and code. A missing or unreadable project
// directory leaves both empty.
func (s *Session) withWorkspace(req *agent.Request) {
	if tree, err := workspace.Tree(s.projectRoot, s.treeDepth); err == nil {
		req.Tree = tree
	} else {
		log.Printf("workspace tree %s: %v", s.projectRoot, err)
	}
	if files, err := workspace.ReadProjectFiles(s.projectRoot, s.files); err == nil {
		req.Code = workspace.Render(files)
	} else {
		log.Printf("workspace files %s: %v", s.projectRoot, err)
	}
}

// observe records one agent call in metrics.
func (s *Session) observe(role tutor.AgentRole, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordAgentRequest(role, s.now().Sub(start), err)
	}
	if err != nil {
		log.Printf("%s agent failed: %v", role, err)
	}
}

func completedTasks(rec *tutor.LearnerRecord, projectID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range rec.ProjectEvents(projectID) {
		if e.Outcome != tutor.OutcomePass {
			continue
		}
		name := e.Task
		if name == "" {
			name = e.TaskID
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
