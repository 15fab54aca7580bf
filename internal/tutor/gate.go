package tutor

import "fmt"

// CheckResult is the outcome of one production-requirement check.
type CheckResult struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Passed   bool   `json:"passed"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GateResult is the computed AdvancementGate for one project.
type GateResult struct {
	Open    bool     `json:"open"`
	Reasons []string `json:"reasons,omitempty"`
}

// EvaluateGate computes the advancement gate for a project from its task log and
// check results: at least one pass, latest verdict ship_it, and every check passing.
func EvaluateGate(events []TaskEvent, projectID string, checks []CheckResult) GateResult {
	var (
		hasPass bool
		latest  *TaskEvent
	)
	for i := range events {
		e := events[i]
		if e.ProjectID != projectID || !e.Valid() {
			continue
		}
		if e.Outcome == OutcomePass {
			hasPass = true
		}
		if latest == nil || !e.Timestamp.Before(latest.Timestamp) {
			latest = &events[i]
		}
	}

	var reasons []string
	switch {
	case latest == nil:
		reasons = append(reasons, "no reviewed submissions for this project yet")
	case latest.Verdict != VerdictShipIt:
		reasons = append(reasons, fmt.Sprintf("latest review verdict is %s", latest.Verdict))
	}
	if latest != nil && !hasPass {
		reasons = append(reasons, "no task has passed review")
	}
	for _, c := range checks {
		if !c.Passed {
			reasons = append(reasons, fmt.Sprintf("check %s failed", c.Name))
		}
	}
	return GateResult{Open: len(reasons) == 0, Reasons: reasons}
}
