package agent

import (
	"strings"
	"text/template"

	"github.com/sbenjam1n/tutorloop/internal/schemas"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Role parameterizes the single Agent implementation.
type Role struct {
	ID           tutor.AgentRole
	Instructions string
	// Format describes the structured output; it is left out for free-form replies.
	Format string
	Prompt *template.Template
	Schema string
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"bullets": func(items []string) string {
		if len(items) == 0 {
			return "- none yet"
		}
		return "- " + strings.Join(items, "\n- ")
	},
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

const standards = `Production quality from the first line: typed code, tests, and real error handling.
Modern tools are always acceptable. If a task names an outdated library and the learner used a
better one, that is fine.`

const curriculumInstructions = `You guide a learner through a build-first curriculum.
Every project produces something real and shippable. Decide whether the learner should advance
to the next project, stay on the current one, or step back to remediate a weak area.
Keep them moving fast but not sloppy.`

const curriculumFormat = `Respond with a single JSON object:
{
  "decision": "advance" | "stay" | "remediate",
  "rationale": "why, grounded in their review history",
  "next_action": "what they should do right now",
  "blockers": ["anything holding them back"]
}`

const teacherInstructions = `You teach with the say, see, do method.
Say: explain the concept in two or three plain sentences.
See: show the smallest runnable example of that one concept.
Do: break the work into tiny steps, each with a way to verify it worked.
Never dump a large block of code and say "implement this".`

const teacherFormat = `Respond with a single JSON object:
{
  "topic": "the topic",
  "concept": "the plain-language explanation",
  "example": "a minimal runnable example",
  "steps": [{"action": "one small action", "verify": "how to check it worked"}]
}`

const challengerInstructions = `You assign small, concrete build tasks.
Look at the code first and build on what exists; never assign a rewrite of working code.
Every task includes its error handling, types and failure path from the start.
Size tasks to the learner's preferences.`

const challengerFormat = `Respond with a single JSON object:
{
  "task": "Build X that handles Y and returns Z",
  "context": "how this builds on the existing code",
  "includes": ["error handling", "type hints", "a specific edge case"],
  "acceptance_criteria": ["one or two testable requirements"],
  "estimated_minutes": 30
}`

const reviewerInstructions = `You are a senior engineer reviewing a learner's code.
What matters: does it work, is it typed, is it clean, does it handle errors.
What does not matter: which reasonable library they picked, flag names, minor style.
Verdicts: "ship_it" when it works, is typed and handles errors; "needs_work" for minor issues;
"major_issues" when it does not run, crashes, or ignores errors.
Tag each problem with a short kebab-case issue tag such as "missing-error-handling" or
"no-type-hints", reusing the same tag for the same kind of problem every time.`

const reviewerFormat = `Respond with a single JSON object:
{
  "verdict": "ship_it" | "needs_work" | "major_issues",
  "feedback": "direct feedback on the code",
  "issue_tags": ["kebab-case-tag"],
  "start_here": "the one thing to fix first, or none",
  "must_fix": ["blocking issues only"],
  "should_fix": ["suggestions for next time"]
}`

var curriculumPrompt = mustTemplate("curriculum", `Current project: {{.Project.Name}} ({{.Project.ID}})
Projects completed: {{len .Profile.ProjectsCompleted}}
Tasks that passed review on this project:
{{bullets .Completed}}

Production requirements:
{{bullets .Project.Requirements}}

Recent performance: {{.Snapshot.Events}} reviews, pass rate {{printf "%.2f" .Snapshot.PassRate}}, trend {{.Snapshot.Trend}}.
Recurring issues:
{{bullets .Snapshot.RecurringIssues}}

Assess their progress and recommend the next step.`)

var teacherPrompt = mustTemplate("teacher", `They are building: {{.Project.Name}}
They need to learn: {{.Topic}}
{{- if .Task}}
Their current task: {{.Task}}{{end}}

Teach {{.Topic}} with production examples they can use right now.
Keep it short; they should be coding, not reading.`)

var challengerPrompt = mustTemplate("challenger", `Current project: {{.Project.Name}}
What they are building: {{.Project.Build}}
Skills to learn:
{{bullets .Project.Skills}}

Tasks already completed (do not repeat):
{{bullets .Completed}}

Recurring issues to address:
{{bullets .Snapshot.RecurringIssues}}
{{- if .Tree}}

Project structure:
{{.Tree}}{{end}}
{{- if .Code}}

Existing code:
{{.Code}}{{end}}

Give the next task that builds on what exists.`)

var reviewerPrompt = mustTemplate("reviewer", `Project: {{.Project.Name}}
Current task: {{.Task}}
{{- if .Description}}
Learner's note: {{.Description}}{{end}}

Review only the code below. Does it complete the current task?
{{.Code}}`)

var chatPrompt = mustTemplate("chat", `The learner asks: {{.Question}}
{{- if .Task}}

Their current task: {{.Task}}{{end}}
{{- if .Tree}}

Project structure:
{{.Tree}}{{end}}
{{- if .Code}}

Their code:
{{.Code}}{{end}}

Look at their code and teach. If there is a bug, show exactly where it is and why it is wrong.
If they ask how to do something, show complete working code and explain it.`)

// Roles returns the four primary roles in canonical order.
func Roles() []Role {
	return []Role{
		{ID: tutor.RoleCurriculum, Instructions: curriculumInstructions, Format: curriculumFormat, Prompt: curriculumPrompt, Schema: schemas.CurriculumDecision},
		{ID: tutor.RoleTeacher, Instructions: teacherInstructions, Format: teacherFormat, Prompt: teacherPrompt, Schema: schemas.Lesson},
		{ID: tutor.RoleChallenger, Instructions: challengerInstructions, Format: challengerFormat, Prompt: challengerPrompt, Schema: schemas.TaskAssignment},
		{ID: tutor.RoleReviewer, Instructions: reviewerInstructions, Format: reviewerFormat, Prompt: reviewerPrompt, Schema: schemas.ReviewVerdict},
	}
}
