package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/sbenjam1n/tutorloop/internal/schemas"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Decision is the Curriculum agent's recommendation.
type Decision string

const (
	DecisionAdvance   Decision = "advance"
	DecisionStay      Decision = "stay"
	DecisionRemediate Decision = "remediate"
)

// CurriculumDecision is the Curriculum agent's structured output.
type CurriculumDecision struct {
	Decision   Decision `json:"decision"`
	Rationale  string   `json:"rationale"`
	NextAction string   `json:"next_action"`
	Blockers   []string `json:"blockers,omitempty"`
}

// Step is one verifiable action in a lesson.
type Step struct {
	Action string `json:"action"`
	Verify string `json:"verify,omitempty"`
}

// Lesson is the Teacher agent's structured output.
type Lesson struct {
	Topic   string `json:"topic"`
	Concept string `json:"concept"`
	Example string `json:"example,omitempty"`
	Steps   []Step `json:"steps"`
}

// TaskAssignment is the Challenger agent's structured output.
type TaskAssignment struct {
	TaskID             string   `json:"task_id,omitempty"`
	Task               string   `json:"task"`
	Context            string   `json:"context,omitempty"`
	Includes           []string `json:"includes,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	EstimatedMinutes   int      `json:"estimated_minutes,omitempty"`
}

// Decode extracts the JSON object from raw model text, validates it against the
// role's schema and decodes it into T. Every failure is a GenerationError.
func Decode[T any](role tutor.AgentRole, schema, raw string) (T, error) {
	var out T
	fail := func(err error) (T, error) {
		return out, &tutor.GenerationError{Role: role, Cause: err, Raw: raw}
	}

	body := extractJSON(raw)
	if body == "" {
		return fail(fmt.Errorf("no JSON object in response"))
	}
	clean := jsonc.ToJSON([]byte(body))
	if err := schemas.Validate(schema, clean); err != nil {
		return fail(err)
	}
	if err := json.Unmarshal(clean, &out); err != nil {
		return fail(fmt.Errorf("decode %s: %w", schema, err))
	}
	return out, nil
}

// extractJSON returns the first balanced JSON object in s, preferring a fenced block.
func extractJSON(s string) string {
	start := -1
	for _, fence := range []string{"```json\n", "```json\r\n", "```\n{", "```\r\n{"} {
		if i := strings.Index(s, fence); i >= 0 {
			start = i + len(fence)
			if strings.HasSuffix(fence, "{") {
				start--
			}
			break
		}
	}
	if start < 0 {
		start = strings.IndexByte(s, '{')
	} else if i := strings.IndexByte(s[start:], '{'); i >= 0 {
		start += i
	} else {
		start = -1
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escape:
			escape = false
		case c == '\\' && inString:
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var tagJunk = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeIssueTag folds a model-written tag into kebab-case.
func NormalizeIssueTag(tag string) string {
	return strings.Trim(tagJunk.ReplaceAllString(strings.ToLower(tag), "-"), "-")
}

func normalizeVerdict(v tutor.ReviewVerdict) tutor.ReviewVerdict {
	tags := make([]string, 0, len(v.IssueTags))
	for _, t := range v.IssueTags {
		tags = append(tags, NormalizeIssueTag(t))
	}
	v.IssueTags = tutor.NormalizeTags(tags)
	if strings.EqualFold(strings.TrimSpace(v.StartHere), "none") {
		v.StartHere = ""
	}
	return v
}
