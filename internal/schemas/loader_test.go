package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAll(t *testing.T) {
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			s, err := Compile(name)
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}

	_, err := Compile("nope")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		doc     string
		wantErr bool
	}{
		{"verdict ok", ReviewVerdict, `{"verdict":"ship_it","feedback":"clean","issue_tags":[]}`, false},
		{"verdict unknown", ReviewVerdict, `{"verdict":"lgtm","feedback":"clean"}`, true},
		{"verdict missing feedback", ReviewVerdict, `{"verdict":"needs_work"}`, true},
		{"decision ok", CurriculumDecision, `{"decision":"stay","rationale":"r","next_action":"n"}`, false},
		{"decision unknown", CurriculumDecision, `{"decision":"skip","rationale":"r","next_action":"n"}`, true},
		{"lesson without steps", Lesson, `{"topic":"t","concept":"c","steps":[]}`, true},
		{"task ok", TaskAssignment, `{"task":"t","acceptance_criteria":["a"],"estimated_minutes":25}`, false},
		{"task negative minutes", TaskAssignment, `{"task":"t","acceptance_criteria":["a"],"estimated_minutes":-1}`, true},
		{"record ok", LearnerRecord, `{"version":1,"profile":{"id":"ada","name":"Ada"},"events":[],"active_directives":[],"review_clock":0,"reviews_since_coaching":0}`, false},
		{"record bad outcome", LearnerRecord, `{"version":1,"profile":{"id":"ada","name":"Ada"},"events":[{"id":"e","task_id":"t","timestamp":"x","outcome":"maybe","time_spent":0}],"active_directives":[],"review_clock":0,"reviews_since_coaching":0}`, true},
		{"record bad agent", LearnerRecord, `{"version":1,"profile":{"id":"ada","name":"Ada"},"events":[],"active_directives":[{"id":"d","coach":"council","target_agent":"council","axis":"pacing","setting":"s","text":"t","created_at":"x"}],"review_clock":0,"reviews_since_coaching":0}`, true},
		{"not json", LearnerRecord, `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.schema, []byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestList(t *testing.T) {
	all, err := List()
	require.NoError(t, err)
	assert.Len(t, all, len(names))
}
