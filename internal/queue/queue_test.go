package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValuesRoundTrip(t *testing.T) {
	msg := EventMessage{
		LearnerID: "ada",
		EventID:   "ev-1",
		TaskID:    "task-1",
		ProjectID: "01_cli",
		Verdict:   "needs_work",
		Outcome:   "partial",
		IssueTags: []string{"missing-error-handling"},
		Cycle:     3,
	}
	values := eventValues(msg)
	assert.Equal(t, "ada", values["learner_id"])
	assert.Equal(t, msg, *eventFromValues(values))
}

func TestDecodeWithoutPayload(t *testing.T) {
	// Redis hands field values back as strings.
	got := directiveFromValues(map[string]any{
		"learner_id": "ada",
		"trigger":    "cadence",
		"cycle":      "6",
		"active":     "2",
	})
	assert.Equal(t, DirectiveMessage{LearnerID: "ada", Trigger: "cadence", Cycle: 6, Active: 2}, *got)
}

func TestGetString(t *testing.T) {
	values := map[string]any{"a": "x", "b": 7}
	assert.Equal(t, "x", getString(values, "a"))
	assert.Equal(t, "", getString(values, "b"))
	assert.Equal(t, "", getString(values, "missing"))
}

func TestConnectRedisRejectsBadURL(t *testing.T) {
	_, err := ConnectRedis("not-a-url://")
	assert.Error(t, err)
}

// TestStreams needs a live Redis; set TUTOR_TEST_REDIS_URL to run it.
func TestStreams(t *testing.T) {
	url := os.Getenv("TUTOR_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TUTOR_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(url)
	require.NoError(t, err)
	q := New(client)
	defer q.Close()
	client.Del(ctx, StreamEvents, StreamDirectives)
	require.NoError(t, q.EnsureStreams(ctx))
	require.NoError(t, q.EnsureStreams(ctx))

	_, err = q.PushEvent(ctx, EventMessage{LearnerID: "ada", EventID: "ev-1", TaskID: "t", Verdict: "ship_it", Outcome: "pass"})
	require.NoError(t, err)
	_, err = q.PushDirectives(ctx, DirectiveMessage{LearnerID: "ada", Trigger: "cadence", Cycle: 3, Added: []string{"d1"}, Active: 1})
	require.NoError(t, err)

	events, directives, err := q.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, events)
	assert.EqualValues(t, 1, directives)

	ev, id, err := q.ReadEvent(ctx, "test", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", ev.EventID)
	require.NoError(t, q.Ack(ctx, StreamEvents, id))

	d, _, err := q.ReadDirectives(ctx, "test", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, d.Added)

	_, _, err = q.ReadEvent(ctx, "test", -1)
	assert.True(t, errors.Is(err, ErrNoMessages))
}
