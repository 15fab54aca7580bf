package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// ProgressFile is the report ExportProgress writes.
const ProgressFile = "progress.md"

// maxReportEvents bounds the task log table in the report.
const maxReportEvents = 20

// ExportProgress writes a markdown report of one learner to dir/progress.md and
// returns the path written.
func (s *Session) ExportProgress(ctx context.Context, learnerID, dir string) (string, error) {
	rec, err := s.store.Load(ctx, learnerID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("export progress: %w", err)
	}
	path := filepath.Join(dir, ProgressFile)
	if err := os.WriteFile(path, []byte(s.RenderProgress(rec)), 0644); err != nil {
		return "", fmt.Errorf("export progress: %w", err)
	}
	return path, nil
}

// RenderProgress formats a learner record as markdown.
func (s *Session) RenderProgress(rec *tutor.LearnerRecord) string {
	p := rec.Profile
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "- **Learner**: %s\n", p.ID)
	if p.SkillLevel != "" {
		fmt.Fprintf(&b, "- **Level**: %s\n", p.SkillLevel)
	}
	if len(p.Goals) > 0 {
		fmt.Fprintf(&b, "- **Goals**: %s\n", strings.Join(p.Goals, "; "))
	}
	fmt.Fprintf(&b, "- **Reviews**: %d (coaching runs: %d)\n", rec.ReviewClock, rec.CoachingRuns)

	b.WriteString("\n## Curriculum\n\n")
	for i, proj := range s.catalog.Projects {
		mark := " "
		switch {
		case slices.Contains(p.ProjectsCompleted, proj.ID):
			mark = "x"
		case proj.ID == p.CurrentProject:
			mark = ">"
		}
		fmt.Fprintf(&b, "- [%s] %d. %s (%s)\n", mark, i+1, proj.Name, proj.ID)
	}
	if p.CurrentTask != "" {
		fmt.Fprintf(&b, "\nCurrent task: %s\n", p.CurrentTask)
	}

	snap := s.snapshot(rec)
	b.WriteString("\n## Performance\n\n")
	fmt.Fprintf(&b, "- Pass rate: %.0f%% over %d reviews\n", snap.PassRate*100, snap.Events)
	fmt.Fprintf(&b, "- Trend: %s\n", snap.Trend)
	fmt.Fprintf(&b, "- Frustration: %s (%.2f)\n", snap.FrustrationLevel, snap.Frustration)
	if len(snap.RecurringIssues) > 0 {
		fmt.Fprintf(&b, "- Recurring issues: %s\n", strings.Join(snap.RecurringIssues, ", "))
	}

	if len(rec.Events) > 0 {
		b.WriteString("\n## Recent Reviews\n\n")
		b.WriteString("| When | Project | Task | Verdict | Issues |\n")
		b.WriteString("|------|---------|------|---------|--------|\n")
		events := rec.Events
		if len(events) > maxReportEvents {
			events = events[len(events)-maxReportEvents:]
		}
		for _, e := range events {
			task := e.Task
			if task == "" {
				task = e.TaskID
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				e.Timestamp.Format("2006-01-02 15:04"), e.ProjectID, cell(truncate(task, 60)), e.Verdict, strings.Join(e.IssueTags, ", "))
		}
	}

	live := directive.Live(rec.Active, rec.ReviewClock)
	b.WriteString("\n## Active Coaching\n\n")
	if len(live) == 0 {
		b.WriteString("_No active directives._\n")
	}
	for _, d := range live {
		fmt.Fprintf(&b, "- **%s / %s** = %s (from %s coach, expires after cycle %d)\n",
			d.TargetAgent, d.Axis, d.Setting, d.Coach, d.ReinforcedCycle+d.Expiry.Cycles-1)
		fmt.Fprintf(&b, "  - %s\n", d.Text)
		if d.Rationale != "" {
			fmt.Fprintf(&b, "  - _%s_\n", d.Rationale)
		}
	}

	if len(rec.Retired) > 0 {
		b.WriteString("\n## Retired Directives\n\n")
		for _, r := range rec.Retired {
			fmt.Fprintf(&b, "- %s / %s = %s (%s at cycle %d)\n",
				r.Directive.TargetAgent, r.Directive.Axis, r.Directive.Setting, r.Reason, r.RetiredAt)
		}
	}

	if len(rec.Issues) > 0 {
		b.WriteString("\n## Reported Issues\n\n")
		for _, i := range rec.Issues {
			tag := i.Tag
			if tag == "" {
				tag = "unclassified"
			}
			fmt.Fprintf(&b, "- %s [%s]: %s\n", i.ReportedAt.Format("2006-01-02"), tag, i.Text)
		}
	}
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
