package town

import (
	"slices"

	"github.com/google/uuid"
)

// Direction is the way a participant's avatar is facing, as reported by its
// client.
type Direction string

const (
	DirectionFront Direction = "front"
	DirectionBack  Direction = "back"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Location is a participant's position within a town. ConversationLabel is the
// label of the conversation area the client claims to be inside; it is empty
// when the participant is not in any area.
type Location struct {
	X                 float64   `json:"x"`
	Y                 float64   `json:"y"`
	Rotation          Direction `json:"rotation"`
	Moving            bool      `json:"moving"`
	ConversationLabel string    `json:"conversation_label,omitempty"`
}

// Song is a snapshot of a participant's external playback state.
type Song struct {
	DisplayTitle string   `json:"display_title"`
	URIs         []string `json:"uris"`
	Progress     int      `json:"progress"`
}

// PlaybackState is the playing/paused flag reported by the streaming service.
type PlaybackState struct {
	IsPlaying bool `json:"is_playing"`
}

// Participant is one connected user within a town. A participant belongs to
// exactly one town; its fields are mutated in place by Controller operations
// only.
type Participant struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Location Location `json:"location"`
	// Song is nil when nothing is playing for this participant.
	Song *Song `json:"song,omitempty"`

	activeArea *ConversationArea
}

func NewParticipant(username string) *Participant {
	return &Participant{
		ID:       uuid.NewString(),
		Username: username,
		Location: Location{Rotation: DirectionFront},
	}
}

// ActiveArea returns the conversation area the participant currently occupies,
// or nil.
func (p *Participant) ActiveArea() *ConversationArea {
	return p.activeArea
}

func (p *Participant) isWithin(box BoundingBox) bool {
	return box.contains(p.Location.X, p.Location.Y)
}

// snapshot copies the participant so the result can be read and encoded
// without the town lock. The active-area pointer is dropped; area occupancy
// is carried by the area snapshots.
func (p *Participant) snapshot() *Participant {
	cp := *p
	cp.activeArea = nil
	if p.Song != nil {
		song := *p.Song
		song.URIs = slices.Clone(p.Song.URIs)
		cp.Song = &song
	}
	return &cp
}
