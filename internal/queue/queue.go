package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamEvents carries one message per reviewed submission.
	StreamEvents = "tutor_events"
	// StreamDirectives carries one message per committed directive-set change.
	StreamDirectives = "tutor_directives"

	// GroupObservers is the consumer group for dashboards and log shippers.
	GroupObservers = "tutor_observers"
)

// ErrNoMessages is returned by a non-blocking read on an empty stream.
var ErrNoMessages = errors.New("no messages")

// EventMessage is the payload pushed to the tutor_events stream.
type EventMessage struct {
	LearnerID string   `json:"learner_id"`
	EventID   string   `json:"event_id"`
	TaskID    string   `json:"task_id"`
	ProjectID string   `json:"project_id"`
	Verdict   string   `json:"verdict"`
	Outcome   string   `json:"outcome"`
	IssueTags []string `json:"issue_tags,omitempty"`
	Cycle     int      `json:"cycle"`
}

// DirectiveMessage is the payload pushed to the tutor_directives stream.
type DirectiveMessage struct {
	LearnerID string   `json:"learner_id"`
	Trigger   string   `json:"trigger"`
	Cycle     int      `json:"cycle"`
	Added     []string `json:"added,omitempty"`
	Retired   []string `json:"retired,omitempty"`
	Active    int      `json:"active"`
}

// Queue publishes tutoring activity to Redis streams.
type Queue struct {
	client *redis.Client
}

// New creates a Queue from a Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Close releases the client.
func (q *Queue) Close() error { return q.client.Close() }

// EnsureStreams creates the consumer groups if they don't exist.
func (q *Queue) EnsureStreams(ctx context.Context) error {
	for _, stream := range []string{StreamEvents, StreamDirectives} {
		err := q.client.XGroupCreateMkStream(ctx, stream, GroupObservers, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", GroupObservers, stream, err)
		}
	}
	return nil
}

// PushEvent adds a reviewed-submission message to the tutor_events stream.
func (q *Queue) PushEvent(ctx context.Context, msg EventMessage) (string, error) {
	result, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		Values: eventValues(msg),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("push event: %w", err)
	}
	return result, nil
}

// PushDirectives adds a directive-set change to the tutor_directives stream.
func (q *Queue) PushDirectives(ctx context.Context, msg DirectiveMessage) (string, error) {
	result, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamDirectives,
		Values: directiveValues(msg),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("push directives: %w", err)
	}
	return result, nil
}

// ReadEvent reads one event message for consumer. A zero block waits forever;
// a negative block does not wait and returns ErrNoMessages on an empty stream.
func (q *Queue) ReadEvent(ctx context.Context, consumer string, block time.Duration) (*EventMessage, string, error) {
	values, id, err := q.read(ctx, StreamEvents, consumer, block)
	if err != nil {
		return nil, "", fmt.Errorf("read event: %w", err)
	}
	return eventFromValues(values), id, nil
}

// ReadDirectives reads one directive message for consumer.
func (q *Queue) ReadDirectives(ctx context.Context, consumer string, block time.Duration) (*DirectiveMessage, string, error) {
	values, id, err := q.read(ctx, StreamDirectives, consumer, block)
	if err != nil {
		return nil, "", fmt.Errorf("read directives: %w", err)
	}
	return directiveFromValues(values), id, nil
}

func (q *Queue) read(ctx context.Context, stream, consumer string, block time.Duration) (map[string]any, string, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupObservers,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", ErrNoMessages
	}
	if err != nil {
		return nil, "", err
	}
	for _, s := range streams {
		for _, msg := range s.Messages {
			return msg.Values, msg.ID, nil
		}
	}
	return nil, "", ErrNoMessages
}

// Ack acknowledges a message on stream.
func (q *Queue) Ack(ctx context.Context, stream, msgID string) error {
	return q.client.XAck(ctx, stream, GroupObservers, msgID).Err()
}

// Status returns message counts for both streams.
func (q *Queue) Status(ctx context.Context) (events, directives int64, err error) {
	eventsLen, err := q.client.XLen(ctx, StreamEvents).Result()
	if err != nil {
		return 0, 0, err
	}
	directivesLen, err := q.client.XLen(ctx, StreamDirectives).Result()
	if err != nil {
		return 0, 0, err
	}
	return eventsLen, directivesLen, nil
}

func eventValues(msg EventMessage) map[string]any {
	payload, _ := json.Marshal(msg)
	return map[string]any{
		"learner_id": msg.LearnerID,
		"event_id":   msg.EventID,
		"task_id":    msg.TaskID,
		"project_id": msg.ProjectID,
		"verdict":    msg.Verdict,
		"outcome":    msg.Outcome,
		"cycle":      msg.Cycle,
		"payload":    string(payload),
	}
}

func eventFromValues(values map[string]any) *EventMessage {
	var msg EventMessage
	if err := json.Unmarshal([]byte(getString(values, "payload")), &msg); err == nil {
		return &msg
	}
	cycle, _ := strconv.Atoi(getString(values, "cycle"))
	return &EventMessage{
		LearnerID: getString(values, "learner_id"),
		EventID:   getString(values, "event_id"),
		TaskID:    getString(values, "task_id"),
		ProjectID: getString(values, "project_id"),
		Verdict:   getString(values, "verdict"),
		Outcome:   getString(values, "outcome"),
		Cycle:     cycle,
	}
}

func directiveValues(msg DirectiveMessage) map[string]any {
	payload, _ := json.Marshal(msg)
	return map[string]any{
		"learner_id": msg.LearnerID,
		"trigger":    msg.Trigger,
		"cycle":      msg.Cycle,
		"active":     msg.Active,
		"payload":    string(payload),
	}
}

func directiveFromValues(values map[string]any) *DirectiveMessage {
	var msg DirectiveMessage
	if err := json.Unmarshal([]byte(getString(values, "payload")), &msg); err == nil {
		return &msg
	}
	cycle, _ := strconv.Atoi(getString(values, "cycle"))
	active, _ := strconv.Atoi(getString(values, "active"))
	return &DirectiveMessage{
		LearnerID: getString(values, "learner_id"),
		Trigger:   getString(values, "trigger"),
		Cycle:     cycle,
		Active:    active,
	}
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Handler receives messages from Consume. Exactly one argument is non-nil.
type Handler func(event *EventMessage, directives *DirectiveMessage)

// Consume reads both streams for consumer until ctx is done, acknowledging each
// message after h returns. poll bounds each blocking read.
func (q *Queue) Consume(ctx context.Context, consumer string, poll time.Duration, h Handler) error {
	if err := q.EnsureStreams(ctx); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, id, err := q.ReadEvent(ctx, consumer, poll)
		switch {
		case err == nil:
			h(ev, nil)
			q.Ack(ctx, StreamEvents, id)
		case ctx.Err() != nil:
			return ctx.Err()
		case !errors.Is(err, ErrNoMessages):
			log.Printf("event read error: %v", err)
			pause(ctx, poll)
		}

		dm, id, err := q.ReadDirectives(ctx, consumer, -1)
		switch {
		case err == nil:
			h(nil, dm)
			q.Ack(ctx, StreamDirectives, id)
		case ctx.Err() != nil:
			return ctx.Err()
		case !errors.Is(err, ErrNoMessages):
			log.Printf("directive read error: %v", err)
			pause(ctx, poll)
		}
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
