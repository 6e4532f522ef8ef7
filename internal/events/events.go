// Package events publishes gamification outcomes (module completions,
// level-ups, badge grants) to subscribers outside the request path.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ModuleCompleted    Type = "module_completed"
	LevelUp            Type = "level_up"
	BadgeAwarded       Type = "badge_awarded"
	ChallengeCompleted Type = "challenge_completed"
)

type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	UserID     int64                  `json:"user_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func New(t Type, userID int64, at time.Time, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher drops every event. Used when REDIS_ADDR is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
