package agent

import (
	"context"

	"github.com/sbenjam1n/tutorloop/internal/llm"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Set holds the four primary agents.
type Set struct {
	agents map[tutor.AgentRole]*Agent
}

// NewSet binds every primary role to gen.
func NewSet(gen llm.Generator) *Set {
	s := &Set{agents: make(map[tutor.AgentRole]*Agent)}
	for _, r := range Roles() {
		s.agents[r.ID] = New(r, gen)
	}
	return s
}

// Get returns the agent for role, or nil for a non-primary role.
func (s *Set) Get(role tutor.AgentRole) *Agent {
	return s.agents[role]
}

// Decide asks the Curriculum agent whether to advance.
func (s *Set) Decide(ctx context.Context, req Request) (CurriculumDecision, error) {
	return invokeAs[CurriculumDecision](ctx, s.agents[tutor.RoleCurriculum], req)
}

// Teach asks the Teacher agent for a lesson on req.Topic.
func (s *Set) Teach(ctx context.Context, req Request) (Lesson, error) {
	return invokeAs[Lesson](ctx, s.agents[tutor.RoleTeacher], req)
}

// Assign asks the Challenger agent for the next task.
func (s *Set) Assign(ctx context.Context, req Request) (TaskAssignment, error) {
	return invokeAs[TaskAssignment](ctx, s.agents[tutor.RoleChallenger], req)
}

// Review asks the Reviewer agent to judge req.Code. Issue tags come back normalized.
func (s *Set) Review(ctx context.Context, req Request) (tutor.ReviewVerdict, error) {
	v, err := invokeAs[tutor.ReviewVerdict](ctx, s.agents[tutor.RoleReviewer], req)
	if err != nil {
		return v, err
	}
	return normalizeVerdict(v), nil
}

// Chat lets the Teacher answer a free-form question about the learner's code.
func (s *Set) Chat(ctx context.Context, req Request) (string, error) {
	return s.agents[tutor.RoleTeacher].run(ctx, chatPrompt, req, false)
}

func invokeAs[T any](ctx context.Context, a *Agent, req Request) (T, error) {
	raw, err := a.Invoke(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](a.role.ID, a.role.Schema, raw)
}
