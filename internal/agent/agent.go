// Package agent implements the four primary agents on top of a text generator.
//
// One Agent type serves every role; a Role supplies its instructions, prompt
// template and output schema. Agents are stateless: everything they see arrives in
// the Request, including the active coaching directives.
package agent

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/llm"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Request is everything an agent invocation may draw on. Fields a role's prompt
// does not use are ignored.
type Request struct {
	Profile    tutor.LearnerProfile
	Project    curriculum.Project
	Snapshot   tutor.PerformanceSnapshot
	Directives []tutor.Directive
	Completed  []string

	Topic       string
	Task        string
	Description string
	Question    string
	Tree        string
	Code        string
}

// Agent is one primary agent bound to a generator.
type Agent struct {
	role Role
	gen  llm.Generator
}

// New binds role to gen.
func New(role Role, gen llm.Generator) *Agent {
	return &Agent{role: role, gen: gen}
}

// Role returns the agent's role ID.
func (a *Agent) Role() tutor.AgentRole { return a.role.ID }

// System builds the system instructions: role instructions, shared standards and
// learner context, then the agent's active directives.
func (a *Agent) System(req Request, structured bool) string {
	var b strings.Builder
	b.WriteString(a.role.Instructions)
	b.WriteString("\n\n")
	b.WriteString(standards)
	b.WriteString("\n\n")
	b.WriteString(LearnerContext(req.Profile, req.Project, req.Snapshot))
	if structured && a.role.Format != "" {
		b.WriteString("\n\n")
		b.WriteString(a.role.Format)
	}
	return directive.ComposeContext(a.role.ID, b.String(), req.Directives)
}

// Invoke renders the role's prompt and returns the raw model text.
func (a *Agent) Invoke(ctx context.Context, req Request) (string, error) {
	return a.run(ctx, a.role.Prompt, req, true)
}

func (a *Agent) run(ctx context.Context, tmpl *template.Template, req Request, structured bool) (string, error) {
	var prompt strings.Builder
	if err := tmpl.Execute(&prompt, req); err != nil {
		return "", &tutor.GenerationError{Role: a.role.ID, Cause: fmt.Errorf("render prompt: %w", err)}
	}
	out, err := a.gen.Generate(ctx, a.System(req, structured), prompt.String())
	if err != nil {
		return "", &tutor.GenerationError{Role: a.role.ID, Cause: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &tutor.GenerationError{Role: a.role.ID, Cause: fmt.Errorf("empty response")}
	}
	return out, nil
}

// LearnerContext renders the learner's profile, preferences and recent signals.
func LearnerContext(p tutor.LearnerProfile, project curriculum.Project, snap tutor.PerformanceSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LEARNER: %s", p.Name)
	if p.SkillLevel != "" {
		fmt.Fprintf(&b, " (%s)", p.SkillLevel)
	}
	b.WriteString("\n")
	if len(p.Goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(p.Goals, "; "))
	}
	if project.ID != "" {
		fmt.Fprintf(&b, "Current project: %s (%s)\n", project.Name, project.ID)
	}
	fmt.Fprintf(&b, "Projects completed: %d\n", len(p.ProjectsCompleted))
	if len(snap.RecurringIssues) > 0 {
		fmt.Fprintf(&b, "Recurring issues: %s\n", strings.Join(snap.RecurringIssues, ", "))
	}

	pr := p.Preferences
	b.WriteString("\nLEARNER PREFERENCES (adapt your style to match):\n")
	fmt.Fprintf(&b, "- Task size: %s (%s)\n", pr.TaskSize, describe(pr.TaskSize, taskSizes))
	fmt.Fprintf(&b, "- Explanation depth: %s (%s)\n", pr.ExplanationDepth, describe(pr.ExplanationDepth, depths))
	fmt.Fprintf(&b, "- Learning style: %s (%s)\n", pr.LearningStyle, describe(pr.LearningStyle, styles))
	fmt.Fprintf(&b, "- Pace: %s (%s)", pr.Pace, describe(pr.Pace, paces))
	return b.String()
}

var (
	taskSizes = map[string]string{"small": "15-30 minute tasks", "medium": "30-60 minute tasks", "large": "1-2 hour tasks"}
	depths    = map[string]string{"brief": "quick and minimal", "detailed": "thorough with examples", "deep-dive": "comprehensive with theory"}
	styles    = map[string]string{"examples": "show code first, explain after", "theory-first": "explain the concept, then show code", "trial-error": "give the task, let them struggle, then help"}
	paces     = map[string]string{"slow": "extra scaffolding and smaller steps", "normal": "standard progression", "fast": "minimal hand-holding, challenge them"}
)

func describe(v string, m map[string]string) string {
	if d, ok := m[v]; ok {
		return d
	}
	return "no preference"
}
