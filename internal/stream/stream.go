package stream

import (
	"context"
	"sync"
	"time"
)

// Event types published on the workspace stream.
const (
	EventPermissionUpdated = "permission.updated"
	EventWorkspaceSwitched = "workspace.switched"
)

// WorkspaceEvent notifies signed-in clients that their resolved
// workspace may be stale and a refresh is warranted.
type WorkspaceEvent struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id,omitempty"`
	MemberID       string    `json:"member_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	App            string    `json:"app,omitempty"`
	Permission     string    `json:"permission,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Stream fans workspace events out to all active subscribers
// (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan WorkspaceEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan WorkspaceEvent)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan WorkspaceEvent {
	ch := make(chan WorkspaceEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers.
func (s *Stream) Publish(evt WorkspaceEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// PermissionUpdated builds the event emitted after a successful
// permission upsert.
func PermissionUpdated(organizationID, memberID, userID, app, level string) WorkspaceEvent {
	return WorkspaceEvent{
		Type:           EventPermissionUpdated,
		OrganizationID: organizationID,
		MemberID:       memberID,
		UserID:         userID,
		App:            app,
		Permission:     level,
		Timestamp:      time.Now().UTC(),
	}
}
