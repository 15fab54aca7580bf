package session

import (
	"context"
	"fmt"
	"log"

	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// GardenFinding is a state problem discovered by the gardener.
type GardenFinding struct {
	LearnerID   string `json:"learner_id"`
	Category    string `json:"category"` // expired_directive, directive_conflict, unanswered_issue, unknown_project
	Description string `json:"description"`
	Mechanical  bool   `json:"mechanical"` // can be fixed without human judgment
}

// Garden sweeps every learner record. Unless dryRun, mechanical findings are
// fixed: expired directives still in the active set are retired.
func (s *Session) Garden(ctx context.Context, dryRun bool) ([]GardenFinding, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var findings []GardenFinding
	for _, id := range ids {
		rec, err := s.store.Load(ctx, id)
		if err != nil {
			findings = append(findings, GardenFinding{
				LearnerID:   id,
				Category:    "corrupt_record",
				Description: err.Error(),
			})
			continue
		}
		found := s.inspect(rec)
		findings = append(findings, found...)

		if dryRun || !hasMechanical(found) {
			continue
		}
		if err := s.retireExpired(ctx, id); err != nil {
			return findings, fmt.Errorf("garden %s: %w", id, err)
		}
	}
	return findings, nil
}

func (s *Session) inspect(rec *tutor.LearnerRecord) []GardenFinding {
	var findings []GardenFinding
	id := rec.Profile.ID

	for _, d := range rec.Active {
		if d.Expired(rec.ReviewClock) {
			findings = append(findings, GardenFinding{
				LearnerID:   id,
				Category:    "expired_directive",
				Description: fmt.Sprintf("Directive %s (%s/%s: %s) expired at cycle %d but is still stored as active.", d.ID, d.TargetAgent, d.Axis, d.Setting, d.ReinforcedCycle+d.Expiry.Cycles),
				Mechanical:  true,
			})
		}
	}

	for _, key := range directive.Conflicts(rec.Active) {
		findings = append(findings, GardenFinding{
			LearnerID:   id,
			Category:    "directive_conflict",
			Description: fmt.Sprintf("More than one active directive for %s/%s. The record was written outside the injector.", key.Agent, key.Axis),
		})
	}

	answered := make(map[string]bool)
	for _, d := range rec.Active {
		answered[d.Provenance.IssueID] = true
	}
	for _, r := range rec.Retired {
		answered[r.Directive.Provenance.IssueID] = true
	}
	for _, issue := range rec.Issues {
		if !answered[issue.ID] {
			findings = append(findings, GardenFinding{
				LearnerID:   id,
				Category:    "unanswered_issue",
				Description: fmt.Sprintf("Issue %q produced no directive. Consider a new coaching rule for tag %q.", truncate(issue.Text, 80), issue.Tag),
			})
		}
	}

	if p := rec.Profile.CurrentProject; p != "" {
		if _, err := s.catalog.Get(p); err != nil {
			findings = append(findings, GardenFinding{
				LearnerID:   id,
				Category:    "unknown_project",
				Description: fmt.Sprintf("Current project %s is not in the catalog.", p),
			})
		}
	}
	return findings
}

func (s *Session) retireExpired(ctx context.Context, learnerID string) error {
	var retired []tutor.RetiredDirective
	_, err := s.store.Update(ctx, learnerID, func(r *tutor.LearnerRecord) error {
		var next []tutor.Directive
		next, retired = directive.Merge(r.Active, nil, r.ReviewClock)
		r.Active = next
		retire(r, retired)
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil && len(retired) > 0 {
		for _, r := range retired {
			s.metrics.DirectivesRetired.WithLabelValues(string(r.Reason)).Inc()
		}
	}
	log.Printf("gardener retired %d expired directives for %s", len(retired), learnerID)
	return nil
}

func hasMechanical(findings []GardenFinding) bool {
	for _, f := range findings {
		if f.Mechanical {
			return true
		}
	}
	return false
}

// truncate cuts s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
