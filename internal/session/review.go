package session

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbenjam1n/tutorloop/internal/agent"
	"github.com/sbenjam1n/tutorloop/internal/coach"
	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/queue"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
	"github.com/sbenjam1n/tutorloop/internal/workspace"
)

// maxRetired bounds the audit trail kept in the record.
const maxRetired = 200

// Submission is one request for review.
type Submission struct {
	// Code to review. Empty reads the project directory.
	Code        string
	Description string
	// TimeSpent overrides the time measured since the task was assigned.
	TimeSpent time.Duration
	// Expected overrides the Challenger's estimate for the task.
	Expected time.Duration
}

// CoachingResult describes one committed coaching cycle.
type CoachingResult struct {
	Trigger    string
	Cycle      int
	Emitted    []tutor.Directive
	Added      []string
	Reinforced []string
	Retired    []tutor.RetiredDirective
	Active     []tutor.Directive
}

// ReviewResult is the outcome of SubmitForReview.
type ReviewResult struct {
	Verdict  tutor.ReviewVerdict
	Event    tutor.TaskEvent
	Coaching *CoachingResult
}

// SubmitForReview has the Reviewer judge the learner's code, appends the task
// event and, when the cadence is due, runs a coaching cycle in the same update.
func (s *Session) SubmitForReview(ctx context.Context, learnerID string, sub Submission) (*ReviewResult, error) {
	rec, project, err := s.load(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if rec.Profile.CurrentTask == "" {
		return nil, ErrNoTask
	}

	req := s.request(rec, project)
	req.Description = sub.Description
	req.Code = sub.Code
	if strings.TrimSpace(req.Code) == "" {
		files, err := workspace.ReadProjectFiles(s.projectRoot, s.files)
		if err != nil {
			return nil, fmt.Errorf("read project: %w", err)
		}
		req.Code = workspace.Render(files)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrNothingToReview
	}

	start := s.now()
	verdict, err := s.agents.Review(ctx, req)
	s.observe(tutor.RoleReviewer, start, err)
	if err != nil {
		return nil, err
	}

	reviewed := s.now().UTC()
	res := &ReviewResult{Verdict: verdict}
	committed, err := s.store.Update(ctx, learnerID, func(r *tutor.LearnerRecord) error {
		if r.Profile.CurrentTaskID != rec.Profile.CurrentTaskID {
			return fmt.Errorf("submit review: current task changed during review")
		}
		event := tutor.TaskEvent{
			ID:            uuid.NewString(),
			TaskID:        taskID(r.Profile),
			Task:          r.Profile.CurrentTask,
			ProjectID:     project.ID,
			Timestamp:     s.now().UTC(),
			Outcome:       verdict.Verdict.Outcome(),
			TimeSpent:     timeSpent(sub, r.Profile, reviewed),
			ExpectedTime:  expectedTime(sub, r.Profile),
			IssueTags:     verdict.IssueTags,
			Verdict:       verdict.Verdict,
			VerdictDetail: verdict.Feedback,
		}
		r.Events = append(r.Events, event)
		r.ReviewClock++
		r.ReviewsSinceCoaching++
		if verdict.Verdict == tutor.VerdictShipIt {
			clearTask(&r.Profile)
		}
		res.Event = event
		res.Coaching = nil

		if !s.cadence.Due(r.ReviewsSinceCoaching) {
			return nil
		}
		cr, err := s.coach(ctx, r, s.coaches, nil, coach.TriggerCadence, "")
		if err != nil {
			return err
		}
		r.ReviewsSinceCoaching = 0
		res.Coaching = cr
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReview(verdict.Verdict)
	}
	log.Printf("learner %s review %s: %s %v", learnerID, res.Event.ID, verdict.Verdict, verdict.IssueTags)
	s.publishEvent(ctx, learnerID, res.Event, committed.ReviewClock)
	if res.Coaching != nil {
		s.afterCoaching(ctx, learnerID, res.Coaching)
	}
	if s.metrics != nil {
		s.metrics.ObserveLearner(committed)
	}
	return res, nil
}

// IssueResult is the outcome of ReportIssue.
type IssueResult struct {
	Issue    tutor.LearnerIssue
	Coaching *CoachingResult
}

// ReportIssue records a learner-reported problem and runs the coaches that own
// it. With no tag, one is guessed from the text; an unrecognized issue goes to
// every coach.
func (s *Session) ReportIssue(ctx context.Context, learnerID, text, tag string) (*IssueResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("report issue: empty description")
	}
	tag = agent.NormalizeIssueTag(tag)
	if tag == "" {
		tag = coach.Classify(text)
	}
	coaches := coach.ForIssue(s.coaches, tag)

	issue := tutor.LearnerIssue{
		ID:         uuid.NewString(),
		Text:       text,
		Tag:        tag,
		ReportedAt: s.now().UTC(),
	}
	for _, c := range coaches {
		issue.Coaches = append(issue.Coaches, c.Role())
	}
	var reported []string
	if coach.Known(tag) {
		reported = []string{tag}
	}

	res := &IssueResult{Issue: issue}
	committed, err := s.store.Update(ctx, learnerID, func(r *tutor.LearnerRecord) error {
		r.Issues = append(r.Issues, issue)
		cr, err := s.coach(ctx, r, coaches, reported, coach.TriggerIssue, issue.ID)
		if err != nil {
			return err
		}
		res.Coaching = cr
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("learner %s reported issue %s (%q) to %v", learnerID, issue.ID, tag, issue.Coaches)
	s.afterCoaching(ctx, learnerID, res.Coaching)
	if s.metrics != nil {
		s.metrics.ObserveLearner(committed)
	}
	return res, nil
}

// coach runs one coaching cycle against r and merges the result into its
// active set. It must only be called inside a store update.
func (s *Session) coach(ctx context.Context, r *tutor.LearnerRecord, coaches []*coach.Coach, reported []string, trigger, issueID string) (*CoachingResult, error) {
	snap := s.snapshot(r)
	snap.ReportedIssues = reported

	emitted, err := coach.RunSet(ctx, coaches, snap, r.Active)
	if err != nil {
		return nil, fmt.Errorf("coaching cycle: %w", err)
	}
	if issueID != "" {
		for i := range emitted {
			if emitted[i].Provenance.Trigger == coach.TriggerIssue {
				emitted[i].Provenance.IssueID = issueID
			}
		}
	}

	before := make(map[string]bool, len(r.Active))
	for _, d := range r.Active {
		before[d.ID] = true
	}
	next, retired := directive.Merge(r.Active, emitted, r.ReviewClock)
	if keys := directive.Conflicts(next); len(keys) > 0 {
		return nil, fmt.Errorf("coaching cycle: conflicting directives for %v", keys)
	}

	cr := &CoachingResult{
		Trigger: trigger,
		Cycle:   r.ReviewClock,
		Emitted: emitted,
		Retired: retired,
		Active:  next,
	}
	for _, d := range emitted {
		if !containsID(next, d.ID) {
			continue
		}
		if before[d.ID] {
			cr.Reinforced = append(cr.Reinforced, d.ID)
		} else {
			cr.Added = append(cr.Added, d.ID)
		}
	}

	r.Active = next
	retire(r, retired)
	r.CoachingRuns++
	return cr, nil
}

// retire appends to the record's audit trail, keeping the newest maxRetired.
func retire(r *tutor.LearnerRecord, retired []tutor.RetiredDirective) {
	r.Retired = append(r.Retired, retired...)
	if n := len(r.Retired); n > maxRetired {
		r.Retired = slices.Clone(r.Retired[n-maxRetired:])
	}
}

func (s *Session) afterCoaching(ctx context.Context, learnerID string, cr *CoachingResult) {
	if s.metrics != nil {
		s.metrics.RecordCoaching(cr.Trigger, cr.Emitted, cr.Retired)
	}
	log.Printf("learner %s coaching (%s, cycle %d): %d added, %d reinforced, %d retired, %d active",
		learnerID, cr.Trigger, cr.Cycle, len(cr.Added), len(cr.Reinforced), len(cr.Retired), len(cr.Active))

	if s.publisher == nil {
		return
	}
	msg := queue.DirectiveMessage{
		LearnerID: learnerID,
		Trigger:   cr.Trigger,
		Cycle:     cr.Cycle,
		Added:     cr.Added,
		Active:    len(cr.Active),
	}
	for _, r := range cr.Retired {
		msg.Retired = append(msg.Retired, r.Directive.ID)
	}
	_, err := s.publisher.PushDirectives(ctx, msg)
	s.published(queue.StreamDirectives, err)
}

func (s *Session) publishEvent(ctx context.Context, learnerID string, e tutor.TaskEvent, cycle int) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PushEvent(ctx, queue.EventMessage{
		LearnerID: learnerID,
		EventID:   e.ID,
		TaskID:    e.TaskID,
		ProjectID: e.ProjectID,
		Verdict:   string(e.Verdict),
		Outcome:   string(e.Outcome),
		IssueTags: e.IssueTags,
		Cycle:     cycle,
	})
	s.published(queue.StreamEvents, err)
}

// published records a post-commit publish. Failures are logged, never returned:
// the state change already happened.
func (s *Session) published(stream string, err error) {
	if s.metrics != nil {
		s.metrics.RecordPublish(stream, err)
	}
	if err != nil {
		log.Printf("publish to %s: %v", stream, err)
	}
}

// timeSpent is the learner's own figure when given, else the time since the task
// was assigned. Zero means unknown.
func timeSpent(sub Submission, p tutor.LearnerProfile, at time.Time) time.Duration {
	if sub.TimeSpent > 0 {
		return sub.TimeSpent
	}
	if p.CurrentTaskAssignedAt.IsZero() || !at.After(p.CurrentTaskAssignedAt) {
		return 0
	}
	return at.Sub(p.CurrentTaskAssignedAt)
}

func expectedTime(sub Submission, p tutor.LearnerProfile) time.Duration {
	if sub.Expected > 0 {
		return sub.Expected
	}
	return max(p.CurrentTaskExpected, 0)
}

func clearTask(p *tutor.LearnerProfile) {
	p.CurrentTask = ""
	p.CurrentTaskID = ""
	p.CurrentTaskAssignedAt = time.Time{}
	p.CurrentTaskExpected = 0
}

func taskID(p tutor.LearnerProfile) string {
	if p.CurrentTaskID != "" {
		return p.CurrentTaskID
	}
	return p.CurrentTask
}

func containsID(ds []tutor.Directive, id string) bool {
	for _, d := range ds {
		if d.ID == id {
			return true
		}
	}
	return false
}
