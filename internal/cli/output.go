package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sbenjam1n/tutorloop/internal/agent"
	"github.com/sbenjam1n/tutorloop/internal/session"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")).Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func verdictStyle(v tutor.Verdict) lipgloss.Style {
	switch v {
	case tutor.VerdictShipIt:
		return passStyle
	case tutor.VerdictNeedsWork:
		return warnStyle
	}
	return failStyle
}

func mark(ok bool) string {
	if ok {
		return passStyle.Render("✓")
	}
	return failStyle.Render("✗")
}

func bullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", headerStyle.Render(title))
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}

func formatVerdict(v tutor.ReviewVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Verdict:"), verdictStyle(v.Verdict).Render(string(v.Verdict)))
	b.WriteString(v.Feedback + "\n")
	if v.StartHere != "" {
		fmt.Fprintf(&b, "\n%s %s\n", headerStyle.Render("Start here:"), v.StartHere)
	}
	bullets(&b, "Must fix:", v.MustFix)
	bullets(&b, "Should fix:", v.ShouldFix)
	if len(v.IssueTags) > 0 {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render("issues: "+strings.Join(v.IssueTags, ", ")))
	}
	return b.String()
}

func formatCoaching(cr *session.CoachingResult) string {
	if cr == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s at cycle %d: %d new, %d reinforced, %d retired\n",
		titleStyle.Render("Coaching"), cr.Trigger, cr.Cycle, len(cr.Added), len(cr.Reinforced), len(cr.Retired))
	added := make(map[string]bool, len(cr.Added))
	for _, id := range cr.Added {
		added[id] = true
	}
	for _, d := range cr.Active {
		if !added[d.ID] {
			continue
		}
		fmt.Fprintf(&b, "  + %s/%s = %s: %s\n", d.TargetAgent, d.Axis, d.Setting, d.Text)
	}
	return b.String()
}

func formatDirectives(ds []tutor.Directive, cycle int) string {
	if len(ds) == 0 {
		return dimStyle.Render("No active directives.") + "\n"
	}
	var b strings.Builder
	for _, role := range tutor.PrimaryRoles() {
		var lines []string
		for _, d := range ds {
			if d.TargetAgent != role {
				continue
			}
			left := d.ReinforcedCycle + d.Expiry.Cycles - cycle
			lines = append(lines, fmt.Sprintf("  %-18s %-14s %s %s",
				d.Axis, d.Setting, d.Text, dimStyle.Render(fmt.Sprintf("(%d cycles left, %s)", left, d.Provenance.Trigger))))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s\n%s\n", headerStyle.Render(string(role)), strings.Join(lines, "\n"))
	}
	return b.String()
}

func formatChecks(results []tutor.CheckResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s %-12s %s\n", mark(r.Passed), r.Name, dimStyle.Render(r.Command))
		if r.Error != "" {
			fmt.Fprintf(&b, "    %s\n", failStyle.Render(r.Error))
		} else if !r.Passed && r.Output != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Output, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", dimStyle.Render(line))
			}
		}
	}
	return b.String()
}

func formatTask(task agent.TaskAssignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Task:"), task.Task)
	if task.Context != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Context)
	}
	bullets(&b, "Includes:", task.Includes)
	bullets(&b, "Done when:", task.AcceptanceCriteria)
	if task.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(fmt.Sprintf("about %d minutes", task.EstimatedMinutes)))
	}
	return b.String()
}

func formatLesson(lesson agent.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n", titleStyle.Render(lesson.Topic), lesson.Concept)
	if lesson.Example != "" {
		fmt.Fprintf(&b, "\n%s\n", lesson.Example)
	}
	if len(lesson.Steps) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render("Steps:"))
	}
	for i, step := range lesson.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step.Action)
		if step.Verify != "" {
			fmt.Fprintf(&b, "     %s\n", dimStyle.Render("verify: "+step.Verify))
		}
	}
	return b.String()
}

func formatDecision(d agent.CurriculumDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s\n", titleStyle.Render("Decision:"), headerStyle.Render(string(d.Decision)), d.Rationale)
	if d.NextAction != "" {
		fmt.Fprintf(&b, "\n%s %s\n", headerStyle.Render("Next:"), d.NextAction)
	}
	bullets(&b, "Blockers:", d.Blockers)
	return b.String()
}

func formatReview(res *session.ReviewResult) string {
	return formatVerdict(res.Verdict) + formatCoaching(res.Coaching)
}

func formatIssue(res *session.IssueResult) string {
	tag := res.Issue.Tag
	if tag == "" {
		tag = "unclassified"
	}
	roles := make([]string, len(res.Issue.Coaches))
	for i, r := range res.Issue.Coaches {
		roles[i] = string(r)
	}
	return fmt.Sprintf("Recorded issue %s, sent to: %s\n", warnStyle.Render(tag), strings.Join(roles, ", ")) +
		formatCoaching(res.Coaching)
}

func formatCompletion(c *session.Completion) string {
	var b strings.Builder
	b.WriteString(formatChecks(c.Checks))
	if !c.Gate.Open {
		fmt.Fprintf(&b, "\n%s %s is not done yet:\n", failStyle.Render("Gate closed."), c.Project.Name)
		for _, r := range c.Gate.Reasons {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "\n%s %s shipped.\n", passStyle.Render("Gate open."), c.Project.Name)
	if c.Finished {
		b.WriteString("That was the last project. The build path is complete.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\n%s %s\n  %s\n", titleStyle.Render("Next project:"), c.Next.Name, c.Next.Build)
	return b.String()
}

func formatStatus(st *session.Status) string {
	var b strings.Builder
	p := st.Record.Profile
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Learner:"), p.Name)
	if st.Project.ID == "" {
		fmt.Fprintf(&b, "Curriculum complete (%d projects).\n", len(p.ProjectsCompleted))
	} else {
		fmt.Fprintf(&b, "Project %d/%d: %s\n", st.Position, st.Total, st.Project.Name)
	}
	if p.CurrentTask != "" {
		fmt.Fprintf(&b, "Task: %s\n", p.CurrentTask)
	}

	snap := st.Snapshot
	fmt.Fprintf(&b, "\n%s\n", headerStyle.Render("Performance"))
	fmt.Fprintf(&b, "  reviews %d  pass rate %.0f%%  trend %s  frustration %s\n",
		snap.Events, snap.PassRate*100, snap.Trend, snap.FrustrationLevel)
	if len(snap.RecurringIssues) > 0 {
		fmt.Fprintf(&b, "  recurring: %s\n", warnStyle.Render(strings.Join(snap.RecurringIssues, ", ")))
	}
	fmt.Fprintf(&b, "  next coaching cycle in %d review(s)\n", st.NextCoaching)

	if st.Project.ID != "" {
		fmt.Fprintf(&b, "\n%s %s\n", headerStyle.Render("Review gate"), mark(st.ReviewGate.Open))
		for _, r := range st.ReviewGate.Reasons {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", headerStyle.Render("Coaching"))
	b.WriteString(formatDirectives(st.Live, st.Record.ReviewClock))
	return b.String()
}
