package town

import (
	"log/slog"
	"slices"
	"time"
)

// EventType enumerates the notifications a town emits. The set is closed:
// every listener receives the same tagged Event through a single entry point.
type EventType string

const (
	EventParticipantJoined       EventType = "participant_joined"
	EventParticipantMoved        EventType = "participant_moved"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventAreaUpdated             EventType = "area_updated"
	EventAreaDestroyed           EventType = "area_destroyed"
	EventPlaybackUpdated         EventType = "playback_updated"
	EventTownDestroyed           EventType = "town_destroyed"
	EventMessage                 EventType = "message"
)

// ChatMessage is a message relayed between the participants of a town.
type ChatMessage struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Event describes one town state change. The payload field matching the type
// is set; the others are nil.
type Event struct {
	Type        EventType
	Participant *Participant
	Area        *ConversationArea
	Message     *ChatMessage
}

// Listener receives every event a town emits, in emission order. Notify is
// invoked synchronously from Controller operations; a listener must not call
// back into the same Controller.
type Listener interface {
	Notify(Event)
}

// broadcaster fans events out to subscribed listeners in subscription order.
// It is owned by a single Controller, which serializes all access.
type broadcaster struct {
	logger    *slog.Logger
	listeners []Listener
}

func (b *broadcaster) subscribe(l Listener) {
	b.listeners = append(b.listeners, l)
}

// unsubscribe removes a listener. Removing a listener that is not subscribed
// is a no-op.
func (b *broadcaster) unsubscribe(l Listener) {
	if i := slices.Index(b.listeners, l); i >= 0 {
		b.listeners = slices.Delete(b.listeners, i, i+1)
	}
}

func (b *broadcaster) emit(ev Event) {
	for _, l := range b.listeners {
		b.notify(l, ev)
	}
}

// notify delivers one event to one listener. A panicking listener must not
// stop delivery to the listeners after it.
func (b *broadcaster) notify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", "event", string(ev.Type), "panic", r)
		}
	}()
	l.Notify(ev)
}
