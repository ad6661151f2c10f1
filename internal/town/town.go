package town

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// VideoProvisioner issues a connection credential for a participant joining a
// town's video channel. The credential is opaque to the controller.
type VideoProvisioner interface {
	IssueCredential(ctx context.Context, townID, participantID string) (string, error)
}

// MediaProxy performs authenticated calls to the music-streaming service on
// behalf of a participant. A nil result with a nil error means the service had
// no data, which is not a failure.
type MediaProxy interface {
	CurrentTrack(ctx context.Context, townID, participantID string) (*Song, error)
	PlaybackState(ctx context.Context, townID, participantID string) (*PlaybackState, error)
	StartPlayback(ctx context.Context, townID, participantID string, song Song) (bool, error)
	RemoveParticipant(townID, participantID string)
}

// Config describes a town at creation time.
type Config struct {
	ID             string
	FriendlyName   string
	PubliclyListed bool
	UpdatePassword string
	Capacity       int
	// ReconcileInterval overrides the playback polling period. Zero means the
	// default of five seconds.
	ReconcileInterval time.Duration
}

// Controller owns one town's authoritative state: its participants, sessions,
// conversation areas and listeners. All mutations of that state go through
// Controller methods; for a given town they never interleave their
// read-modify-write sequences. Calls to external services are made outside
// the state lock, and membership is re-validated once they return.
type Controller struct {
	id             string
	updatePassword string
	capacity       int

	video  VideoProvisioner
	media  MediaProxy
	logger *slog.Logger

	mu             sync.Mutex
	friendlyName   string
	publiclyListed bool
	participants   []*Participant
	sessions       []*Session
	areas          areaIndex
	broadcast      broadcaster
	destroyed      bool

	reconciler *reconciler
}

func NewController(cfg *Config, video VideoProvisioner, media MediaProxy, logger *slog.Logger) *Controller {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 50
	}

	c := &Controller{
		id:             cfg.ID,
		friendlyName:   cfg.FriendlyName,
		publiclyListed: cfg.PubliclyListed,
		updatePassword: cfg.UpdatePassword,
		capacity:       capacity,
		video:          video,
		media:          media,
		logger:         logger,
		broadcast:      broadcaster{logger: logger},
	}
	c.reconciler = newReconciler(c, cfg.ReconcileInterval, logger)

	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) UpdatePassword() string {
	return c.updatePassword
}

func (c *Controller) Capacity() int {
	return c.capacity
}

func (c *Controller) FriendlyName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.friendlyName
}

func (c *Controller) SetFriendlyName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.friendlyName = name
}

func (c *Controller) PubliclyListed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publiclyListed
}

func (c *Controller) SetPubliclyListed(listed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publiclyListed = listed
}

// Occupancy returns the current number of participants.
func (c *Controller) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.participants)
}

// Participants returns a snapshot of the current participant list. The
// entries are copies, safe to read and encode without the town lock.
func (c *Controller) Participants() []*Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]*Participant, len(c.participants))
	for i, p := range c.participants {
		snapshot[i] = p.snapshot()
	}
	return snapshot
}

// ConversationAreas returns a snapshot of the currently active conversation
// areas. The entries are copies, safe to read and encode without the town
// lock.
func (c *Controller) ConversationAreas() []*ConversationArea {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]*ConversationArea, len(c.areas.areas))
	for i, a := range c.areas.areas {
		snapshot[i] = a.snapshot()
	}
	return snapshot
}

// AddParticipant registers a new participant and its session, provisions a
// video credential for it, and notifies listeners that the participant
// joined. The capacity bound is enforced here, atomically with registration.
// If provisioning fails the session stays registered and is returned
// alongside an error wrapping ErrProvisioning; the caller may retry credential
// acquisition separately.
func (c *Controller) AddParticipant(ctx context.Context, username string) (*Session, error) {
	p := NewParticipant(username)
	sess := newSession(p)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrTownDestroyed
	}
	if len(c.participants) >= c.capacity {
		c.mu.Unlock()
		return nil, ErrTownFull
	}
	c.sessions = append(c.sessions, sess)
	c.participants = append(c.participants, p)
	c.mu.Unlock()

	c.reconciler.start()

	// The external call may suspend; the state lock is not held so other
	// operations on this town can proceed meanwhile.
	cred, err := c.video.IssueCredential(ctx, c.id, p.ID)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to provision video credential",
			"town_id", c.id, "participant_id", p.ID, "error", err)
		return sess, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		// The town went down while the credential call was in flight; drop
		// the half-registered session instead of leaving a ghost occupant.
		c.deleteSession(sess)
		return nil, ErrTownDestroyed
	}
	if c.sessionByToken(sess.Token) == nil {
		// The participant left while the credential call was in flight.
		return nil, ErrSessionNotFound
	}
	sess.VideoCredential = cred
	c.broadcast.emit(Event{Type: EventParticipantJoined, Participant: p})

	return sess, nil
}

// UpdateParticipantLocation records a participant's new location and
// recomputes its conversation-area membership. The client-declared
// conversation label is trusted as-is; geometry is only checked when an area
// is created. Listeners are always notified of the move, exactly once.
func (c *Controller) UpdateParticipantLocation(p *Participant, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	area := c.areas.byLabel(loc.ConversationLabel)
	prev := p.activeArea

	p.Location = loc
	p.activeArea = area

	if area != prev {
		if prev != nil {
			c.removeFromArea(p, prev)
		}
		if area != nil {
			area.OccupantIDs = append(area.OccupantIDs, p.ID)
			c.broadcast.emit(Event{Type: EventAreaUpdated, Area: area})
		}
	}

	c.broadcast.emit(Event{Type: EventParticipantMoved, Participant: p})
}

// RemoveParticipant destroys a session: the participant leaves its
// conversation area (destroying it if it empties), its cached streaming
// credential is evicted, and listeners are notified of the disconnect.
func (c *Controller) RemoveParticipant(sess *Session) {
	p := sess.Participant
	c.media.RemoveParticipant(c.id, p.ID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteSession(sess)
	c.broadcast.emit(Event{Type: EventParticipantDisconnected, Participant: p})

	if area := p.activeArea; area != nil {
		c.removeFromArea(p, area)
	}
}

// deleteSession drops a session and its participant from the town's lists.
// Callers hold c.mu.
func (c *Controller) deleteSession(sess *Session) {
	c.participants = slices.DeleteFunc(c.participants, func(other *Participant) bool {
		return other.ID == sess.Participant.ID
	})
	c.sessions = slices.DeleteFunc(c.sessions, func(other *Session) bool {
		return other.Token == sess.Token
	})
}

// removeFromArea takes a participant out of an area's occupant list and emits
// the matching notification: area_destroyed when the list empties,
// area_updated otherwise. Callers hold c.mu.
func (c *Controller) removeFromArea(p *Participant, area *ConversationArea) {
	if c.areas.removeOccupant(area, p.ID) {
		c.broadcast.emit(Event{Type: EventAreaDestroyed, Area: area})
	} else {
		c.broadcast.emit(Event{Type: EventAreaUpdated, Area: area})
	}
}

// CreateConversationArea activates a new conversation area. The request is
// rejected when the label is empty or already taken, the topic is empty, or the
// bounding box overlaps an existing area's. On success every participant
// whose location falls inside the box becomes an occupant and listeners
// receive a single area_updated event. Reports whether the area was created.
func (c *Controller) CreateConversationArea(area *ConversationArea) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if area.Label == "" || c.areas.byLabel(area.Label) != nil {
		return false
	}
	if area.Topic == "" {
		return false
	}
	if c.areas.overlapsAny(area.BoundingBox) {
		return false
	}

	// Initial occupancy is geometric, independent of any declared labels.
	area.OccupantIDs = nil
	for _, p := range c.participants {
		if p.isWithin(area.BoundingBox) {
			p.activeArea = area
			area.OccupantIDs = append(area.OccupantIDs, p.ID)
		}
	}
	c.areas.add(area)
	c.broadcast.emit(Event{Type: EventAreaUpdated, Area: area})

	return true
}

// ChangeSong asks the streaming service to start playing a song from the
// beginning on the participant's device. The local snapshot is only replaced,
// and listeners only notified, if the service confirms the change.
func (c *Controller) ChangeSong(ctx context.Context, p *Participant, song Song) error {
	fromStart := Song{
		DisplayTitle: song.DisplayTitle,
		URIs:         song.URIs,
		Progress:     0,
	}

	changed, err := c.media.StartPlayback(ctx, c.id, p.ID, fromStart)
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	if !changed {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil
	}
	current := c.participantByID(p.ID)
	if current == nil {
		return nil
	}
	current.Song = &fromStart
	c.broadcast.emit(Event{Type: EventPlaybackUpdated, Participant: current})

	return nil
}

// BroadcastMessage relays a chat message to every listener.
func (c *Controller) BroadcastMessage(msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast.emit(Event{Type: EventMessage, Message: &msg})
}

// Subscribe registers a listener for this town's events.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast.subscribe(l)
}

// Unsubscribe deregisters a listener. Unsubscribing a listener that is not
// registered is a no-op.
func (c *Controller) Unsubscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast.unsubscribe(l)
}

// SessionByToken resolves a session token. It returns ErrSessionNotFound for
// tokens that are unknown or already destroyed.
func (c *Controller) SessionByToken(token string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sessionByToken(token)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Destroy tears the town down: listeners receive town_destroyed, joins are
// rejected from this point on, and the playback reconciliation loop is shut
// down for good so no timer outlives the town. Destroying a town twice is a
// no-op. The reconciler shutdown happens after the state lock is released;
// it takes the reconciler lock first, same as the loop's own self-stop.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.broadcast.emit(Event{Type: EventTownDestroyed})
	c.mu.Unlock()

	c.reconciler.shutdown()
}

// applyPlayback installs a reconciled playback snapshot for a participant, or
// clears it when song is nil. Membership is re-checked under the lock so a
// stale result for a departed participant, or one arriving after the loop was
// cancelled, is discarded instead of broadcast.
func (c *Controller) applyPlayback(ctx context.Context, participantID string, song *Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.destroyed {
		return
	}
	p := c.participantByID(participantID)
	if p == nil {
		return
	}

	p.Song = song
	c.broadcast.emit(Event{Type: EventPlaybackUpdated, Participant: p})
}

func (c *Controller) sessionByToken(token string) *Session {
	for _, sess := range c.sessions {
		if sess.Token == token {
			return sess
		}
	}
	return nil
}

func (c *Controller) participantByID(id string) *Participant {
	for _, p := range c.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}
