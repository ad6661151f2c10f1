package towns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/townsquare/server/internal/town"
	"github.com/townsquare/server/pkg/randstr"
)

var (
	ErrTownNotFound    = errors.New("town not found")
	ErrInvalidPassword = errors.New("invalid update password")
	ErrEmptyName       = errors.New("friendly name must not be empty")

	// ErrTownFull is the controller's capacity rejection, surfaced unchanged:
	// the check lives inside AddParticipant so it stays atomic with the join.
	ErrTownFull = town.ErrTownFull
)

// iMediaProxy is the streaming client as seen from the registry: the
// controller-facing proxy plus the lifecycle hooks the registry drives.
type iMediaProxy interface {
	town.MediaProxy
	RegisterTown(townID string)
	UnregisterTown(townID string)
	AddParticipant(townID, participantID, rawCredential string) error
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

// Config tunes the registry.
type Config struct {
	// DemoTownID pins one well-known town ID: a town created with this value
	// as its friendly name keeps it as its ID instead of a generated one.
	DemoTownID string
	// DefaultCapacity is applied to every created town. Zero means 50.
	DefaultCapacity int
}

// service is the registry of town controllers: the administration surface for
// creating, listing, updating, deleting and joining towns. Each town's
// authoritative state stays inside its controller; the registry only owns the
// ID-to-controller mapping.
type service struct {
	video  town.VideoProvisioner
	media  iMediaProxy
	logger *slog.Logger

	generator       iGenerator
	demoTownID      string
	defaultCapacity int

	mu    sync.RWMutex
	towns map[string]*town.Controller
}

func NewService(video town.VideoProvisioner, media iMediaProxy, logger *slog.Logger, cfg *Config) *service {
	s := service{
		video:           video,
		media:           media,
		logger:          logger,
		demoTownID:      cfg.DemoTownID,
		defaultCapacity: cfg.DefaultCapacity,
		towns:           make(map[string]*town.Controller),
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

type CreateTownParams struct {
	FriendlyName   string
	PubliclyListed bool
}

type CreateTownResponse struct {
	TownID         string
	UpdatePassword string
}

func (s *service) CreateTown(ctx context.Context, params *CreateTownParams) (CreateTownResponse, error) {
	if params.FriendlyName == "" {
		return CreateTownResponse{}, ErrEmptyName
	}

	townID, err := s.townID(params.FriendlyName)
	if err != nil {
		return CreateTownResponse{}, fmt.Errorf("generate town id: %w", err)
	}
	password := s.generator.GenerateRandomString(24)

	ctrl := town.NewController(&town.Config{
		ID:             townID,
		FriendlyName:   params.FriendlyName,
		PubliclyListed: params.PubliclyListed,
		UpdatePassword: password,
		Capacity:       s.defaultCapacity,
	}, s.video, s.media, s.logger)

	s.media.RegisterTown(townID)

	s.mu.Lock()
	s.towns[townID] = ctrl
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "town created",
		"town_id", townID, "friendly_name", params.FriendlyName,
		"publicly_listed", params.PubliclyListed)

	return CreateTownResponse{
		TownID:         townID,
		UpdatePassword: password,
	}, nil
}

// townID returns the ID for a new town: the configured demo ID when the
// friendly name matches it, a generated short ID otherwise.
func (s *service) townID(friendlyName string) (string, error) {
	if s.demoTownID != "" && friendlyName == s.demoTownID {
		return s.demoTownID, nil
	}
	return shortid.Generate()
}

type TownSummary struct {
	TownID       string `json:"town_id"`
	FriendlyName string `json:"friendly_name"`
	Occupancy    int    `json:"occupancy"`
	Capacity     int    `json:"capacity"`
}

// ListTowns returns a summary of every publicly listed town, ordered by ID.
func (s *service) ListTowns(ctx context.Context) []TownSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]TownSummary, 0, len(s.towns))
	for id, ctrl := range s.towns {
		if !ctrl.PubliclyListed() {
			continue
		}
		summaries = append(summaries, TownSummary{
			TownID:       id,
			FriendlyName: ctrl.FriendlyName(),
			Occupancy:    ctrl.Occupancy(),
			Capacity:     ctrl.Capacity(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TownID < summaries[j].TownID
	})

	return summaries
}

type UpdateTownParams struct {
	TownID         string
	UpdatePassword string
	FriendlyName   *string
	PubliclyListed *bool
}

// UpdateTown renames a town or toggles its public listing. Gated by the
// town's update password.
func (s *service) UpdateTown(ctx context.Context, params *UpdateTownParams) error {
	ctrl, err := s.controller(params.TownID)
	if err != nil {
		return err
	}
	if ctrl.UpdatePassword() != params.UpdatePassword {
		return ErrInvalidPassword
	}

	if params.FriendlyName != nil {
		if *params.FriendlyName == "" {
			return ErrEmptyName
		}
		ctrl.SetFriendlyName(*params.FriendlyName)
	}
	if params.PubliclyListed != nil {
		ctrl.SetPubliclyListed(*params.PubliclyListed)
	}

	return nil
}

type DeleteTownParams struct {
	TownID         string
	UpdatePassword string
}

// DeleteTown tears a town down: listeners are notified, the reconciliation
// loop is stopped, and the streaming credentials are discarded. Gated by the
// town's update password.
func (s *service) DeleteTown(ctx context.Context, params *DeleteTownParams) error {
	ctrl, err := s.controller(params.TownID)
	if err != nil {
		return err
	}
	if ctrl.UpdatePassword() != params.UpdatePassword {
		return ErrInvalidPassword
	}

	s.mu.Lock()
	delete(s.towns, params.TownID)
	s.mu.Unlock()

	ctrl.Destroy()
	s.media.UnregisterTown(params.TownID)

	s.logger.InfoContext(ctx, "town deleted", "town_id", params.TownID)

	return nil
}

type JoinTownParams struct {
	TownID   string
	Username string
	// StreamingCredential is the raw streaming-service token payload the
	// client obtained out of band. Optional.
	StreamingCredential string
}

type JoinTownResponse struct {
	Session      *town.Session
	Participants []*town.Participant
	Areas        []*town.ConversationArea
}

// JoinTown adds a participant to a town and returns its session together with
// the town's current state. The controller enforces the capacity bound
// atomically with the join.
func (s *service) JoinTown(ctx context.Context, params *JoinTownParams) (JoinTownResponse, error) {
	ctrl, err := s.controller(params.TownID)
	if err != nil {
		return JoinTownResponse{}, err
	}

	sess, err := ctrl.AddParticipant(ctx, params.Username)
	if err != nil {
		if errors.Is(err, town.ErrTownDestroyed) {
			// The town was deleted after the lookup; to the caller it no
			// longer exists.
			return JoinTownResponse{}, ErrTownNotFound
		}
		return JoinTownResponse{}, err
	}

	if params.StreamingCredential != "" {
		sess.StreamingCredential = params.StreamingCredential
		if err := s.media.AddParticipant(params.TownID, sess.Participant.ID, params.StreamingCredential); err != nil {
			// A malformed credential degrades to "no playback data", it does
			// not fail the join.
			s.logger.InfoContext(ctx, "failed to store streaming credential",
				"town_id", params.TownID, "participant_id", sess.Participant.ID, "error", err)
		}
	}

	return JoinTownResponse{
		Session:      sess,
		Participants: ctrl.Participants(),
		Areas:        ctrl.ConversationAreas(),
	}, nil
}

// Town resolves a town ID to its controller.
func (s *service) Town(townID string) (*town.Controller, error) {
	return s.controller(townID)
}

func (s *service) controller(townID string) (*town.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctrl, ok := s.towns[townID]
	if !ok {
		return nil, ErrTownNotFound
	}
	return ctrl, nil
}
