package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbenjam1n/tutorloop/internal/agent"
	"github.com/sbenjam1n/tutorloop/internal/coach"
	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/gate"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Enrollment is what onboarding collects.
type Enrollment struct {
	ID          string
	Name        string
	Goals       []string
	SkillLevel  string
	Preferences tutor.Preferences
}

// Onboard creates the learner's record and points them at the first project.
func (s *Session) Onboard(ctx context.Context, e Enrollment) (*tutor.LearnerRecord, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return nil, fmt.Errorf("onboard: learner id required")
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = id
	}

	prefs := tutor.DefaultPreferences()
	if e.Preferences.TaskSize != "" {
		prefs.TaskSize = e.Preferences.TaskSize
	}
	if e.Preferences.ExplanationDepth != "" {
		prefs.ExplanationDepth = e.Preferences.ExplanationDepth
	}
	if e.Preferences.LearningStyle != "" {
		prefs.LearningStyle = e.Preferences.LearningStyle
	}
	if e.Preferences.Pace != "" {
		prefs.Pace = e.Preferences.Pace
	}

	rec := tutor.NewRecord(tutor.LearnerProfile{
		ID:                id,
		Name:              name,
		Goals:             e.Goals,
		SkillLevel:        e.SkillLevel,
		Preferences:       prefs,
		CurrentProject:    s.catalog.First().ID,
		ProjectsCompleted: []string{},
		CreatedAt:         s.now().UTC(),
	})
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("onboard: %w", err)
	}
	log.Printf("onboarded learner %s on %s", id, rec.Profile.CurrentProject)
	return rec, nil
}

// NextTask asks the Challenger for the next task and makes it the learner's
// current task.
func (s *Session) NextTask(ctx context.Context, learnerID string) (agent.TaskAssignment, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return agent.TaskAssignment{}, err
	}
	req := s.request(rec, project)
	s.withWorkspace(&req)

	start := s.now()
	task, err := s.agents.Assign(ctx, req)
	s.observe(tutor.RoleChallenger, start, err)
	if err != nil {
		return agent.TaskAssignment{}, err
	}
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	assigned := s.now().UTC()
	_, err = s.store.Update(ctx, learnerID, func(r *tutor.LearnerRecord) error {
		r.Profile.CurrentTask = task.Task
		r.Profile.CurrentTaskID = task.TaskID
		r.Profile.CurrentTaskAssignedAt = assigned
		r.Profile.CurrentTaskExpected = time.Duration(max(task.EstimatedMinutes, 0)) * time.Minute
		return nil
	})
	if err != nil {
		return agent.TaskAssignment{}, fmt.Errorf("assign task: %w", err)
	}
	return task, nil
}

// Lesson asks the Teacher for a lesson on topic. It changes no state.
func (s *Session) Lesson(ctx context.Context, learnerID, topic string) (agent.Lesson, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return agent.Lesson{}, err
	}
	req := s.request(rec, project)
	req.Topic = strings.TrimSpace(topic)
	if req.Topic == "" {
		req.Topic = strings.Join(project.Skills, ", ")
	}

	start := s.now()
	lesson, err := s.agents.Teach(ctx, req)
	s.observe(tutor.RoleTeacher, start, err)
	return lesson, err
}

// CurriculumCheck asks the Curriculum agent whether the learner should advance.
// It changes no state.
func (s *Session) CurriculumCheck(ctx context.Context, learnerID string) (agent.CurriculumDecision, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return agent.CurriculumDecision{}, err
	}
	start := s.now()
	decision, err := s.agents.Decide(ctx, s.request(rec, project))
	s.observe(tutor.RoleCurriculum, start, err)
	return decision, err
}

// Chat lets the learner ask the Teacher about their code. It changes no state.
func (s *Session) Chat(ctx context.Context, learnerID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("chat: empty question")
	}
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return "", err
	}
	req := s.request(rec, project)
	req.Question = question
	s.withWorkspace(&req)

	start := s.now()
	answer, err := s.agents.Chat(ctx, req)
	s.observe(tutor.RoleTeacher, start, err)
	return answer, err
}

// RunChecks runs the current project's production checks in the project root.
// It changes no state.
func (s *Session) RunChecks(ctx context.Context, learnerID string) ([]tutor.CheckResult, error) {
	_, project, err := s.load(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return s.runChecks(ctx, project)
}

func (s *Session) runChecks(ctx context.Context, project curriculum.Project) ([]tutor.CheckResult, error) {
	results, err := gate.RunChecks(ctx, s.runner, project.Checks, s.projectRoot)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordChecks(results)
	}
	passed, total := gate.Summary(results)
	log.Printf("checks for %s: %d/%d passed", project.ID, passed, total)
	return results, nil
}

// Completion is the outcome of CompleteProject.
type Completion struct {
	Project  curriculum.Project
	Checks   []tutor.CheckResult
	Gate     tutor.GateResult
	Next     *curriculum.Project
	Finished bool
}

// CompleteProject evaluates the advancement gate for the current project. When it
// is open the project is marked done and the learner moves to the next one.
func (s *Session) CompleteProject(ctx context.Context, learnerID string) (*Completion, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	checks, err := s.runChecks(ctx, project)
	if err != nil {
		return nil, err
	}

	c := &Completion{
		Project: project,
		Checks:  checks,
		Gate:    tutor.EvaluateGate(rec.Events, project.ID, checks),
	}
	if !c.Gate.Open {
		return c, nil
	}

	next, ok, err := s.catalog.Next(project.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		c.Next = &next
	} else {
		c.Finished = true
	}

	_, err = s.store.Update(ctx, learnerID, func(r *tutor.LearnerRecord) error {
		if r.Profile.CurrentProject != project.ID {
			return fmt.Errorf("complete project: learner moved to %s", r.Profile.CurrentProject)
		}
		if !slices.Contains(r.Profile.ProjectsCompleted, project.ID) {
			r.Profile.ProjectsCompleted = append(r.Profile.ProjectsCompleted, project.ID)
		}
		r.Profile.CurrentProject = ""
		if c.Next != nil {
			r.Profile.CurrentProject = c.Next.ID
		}
		clearTask(&r.Profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("learner %s completed %s", learnerID, project.ID)
	return c, nil
}

// Status is a read-only view of one learner.
type Status struct {
	Record   *tutor.LearnerRecord
	Project  curriculum.Project
	Position int
	Total    int
	Snapshot tutor.PerformanceSnapshot
	// Live is the active directive set as agents currently see it.
	Live []tutor.Directive
	// ReviewGate is the advancement gate without production checks.
	ReviewGate tutor.GateResult
	// NextCoaching is how many more reviews until the next cadence cycle.
	NextCoaching int
}

// Status reports the learner's progress and active coaching.
func (s *Session) Status(ctx context.Context, learnerID string) (*Status, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil && !errors.Is(err, ErrCurriculumComplete) {
		return nil, err
	}
	interval := s.cadence.Interval
	if interval <= 0 {
		interval = coach.DefaultInterval
	}
	st := &Status{
		Record:       rec,
		Project:      project,
		Position:     s.catalog.Position(project.ID),
		Total:        len(s.catalog.Projects),
		Snapshot:     s.snapshot(rec),
		Live:         directive.Live(rec.Active, rec.ReviewClock),
		NextCoaching: max(interval-rec.ReviewsSinceCoaching, 0),
	}
	if project.ID != "" {
		st.ReviewGate = tutor.EvaluateGate(rec.Events, project.ID, nil)
	}
	return st, nil
}

// Instructions returns the system instructions role would receive right now,
// coaching directives included. It changes no state.
func (s *Session) Instructions(ctx context.Context, learnerID string, role tutor.AgentRole) (string, error) {
	a := s.agents.Get(role)
	if a == nil {
		return "", fmt.Errorf("unknown agent %q", role)
	}
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return "", err
	}
	return a.System(s.request(rec, project), true), nil
}
