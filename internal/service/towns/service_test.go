package towns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townsquare/server/internal/town"
)

type stubVideo struct{}

func (stubVideo) IssueCredential(_ context.Context, _, participantID string) (string, error) {
	return "video-credential-" + participantID, nil
}

type stubMedia struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
	credentials  map[string]string
}

func newStubMedia() *stubMedia {
	return &stubMedia{credentials: make(map[string]string)}
}

func (m *stubMedia) CurrentTrack(_ context.Context, _, _ string) (*town.Song, error) {
	return nil, nil
}

func (m *stubMedia) PlaybackState(_ context.Context, _, _ string) (*town.PlaybackState, error) {
	return nil, nil
}

func (m *stubMedia) StartPlayback(_ context.Context, _, _ string, _ town.Song) (bool, error) {
	return false, nil
}

func (m *stubMedia) RemoveParticipant(_, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credentials, participantID)
}

func (m *stubMedia) RegisterTown(townID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, townID)
}

func (m *stubMedia) UnregisterTown(townID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregistered = append(m.unregistered, townID)
}

func (m *stubMedia) AddParticipant(_, participantID, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[participantID] = raw
	return nil
}

type stubListener struct {
	mu     sync.Mutex
	events []town.EventType
}

func (l *stubListener) Notify(ev town.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
}

func (l *stubListener) count(typ town.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.events {
		if got == typ {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(cfg *Config) (*service, *stubMedia) {
	media := newStubMedia()
	return NewService(stubVideo{}, media, testLogger(), cfg), media
}

func TestCreateTown(t *testing.T) {
	s, media := newTestService(&Config{})
	ctx := context.Background()

	resp, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "my town", PubliclyListed: true})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TownID, "town id is empty")
	assert.Len(t, resp.UpdatePassword, 24)
	assert.Equal(t, []string{resp.TownID}, media.registered)

	ctrl, err := s.Town(resp.TownID)
	require.NoError(t, err)
	assert.Equal(t, "my town", ctrl.FriendlyName())
	assert.Equal(t, 50, ctrl.Capacity())
}

func TestCreateTownEmptyName(t *testing.T) {
	s, _ := newTestService(&Config{})

	_, err := s.CreateTown(context.Background(), &CreateTownParams{FriendlyName: ""})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestCreateTownDemoPin(t *testing.T) {
	s, _ := newTestService(&Config{DemoTownID: "demo-town"})
	ctx := context.Background()

	resp, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "demo-town", PubliclyListed: true})
	require.NoError(t, err)
	assert.Equal(t, "demo-town", resp.TownID)

	other, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "other", PubliclyListed: true})
	require.NoError(t, err)
	assert.NotEqual(t, "demo-town", other.TownID)
}

func TestListTownsPublicOnly(t *testing.T) {
	s, _ := newTestService(&Config{})
	ctx := context.Background()

	public, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "public town", PubliclyListed: true})
	require.NoError(t, err)
	_, err = s.CreateTown(ctx, &CreateTownParams{FriendlyName: "hidden town", PubliclyListed: false})
	require.NoError(t, err)

	summaries := s.ListTowns(ctx)
	require.Len(t, summaries, 1)
	assert.Equal(t, public.TownID, summaries[0].TownID)
	assert.Equal(t, "public town", summaries[0].FriendlyName)
	assert.Zero(t, summaries[0].Occupancy)
	assert.Equal(t, 50, summaries[0].Capacity)
}

func TestUpdateTown(t *testing.T) {
	s, _ := newTestService(&Config{})
	ctx := context.Background()

	created, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "before", PubliclyListed: false})
	require.NoError(t, err)

	name := "after"
	listed := true
	err = s.UpdateTown(ctx, &UpdateTownParams{
		TownID:         created.TownID,
		UpdatePassword: "wrong",
		FriendlyName:   &name,
	})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = s.UpdateTown(ctx, &UpdateTownParams{
		TownID:         created.TownID,
		UpdatePassword: created.UpdatePassword,
		FriendlyName:   &name,
		PubliclyListed: &listed,
	})
	require.NoError(t, err)

	ctrl, err := s.Town(created.TownID)
	require.NoError(t, err)
	assert.Equal(t, "after", ctrl.FriendlyName())
	assert.True(t, ctrl.PubliclyListed())
}

func TestDeleteTown(t *testing.T) {
	s, media := newTestService(&Config{})
	ctx := context.Background()

	created, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "doomed", PubliclyListed: true})
	require.NoError(t, err)

	ctrl, err := s.Town(created.TownID)
	require.NoError(t, err)
	listener := &stubListener{}
	ctrl.Subscribe(listener)

	err = s.DeleteTown(ctx, &DeleteTownParams{TownID: created.TownID, UpdatePassword: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = s.DeleteTown(ctx, &DeleteTownParams{TownID: created.TownID, UpdatePassword: created.UpdatePassword})
	require.NoError(t, err)

	assert.Equal(t, 1, listener.count(town.EventTownDestroyed))
	assert.Equal(t, []string{created.TownID}, media.unregistered)

	_, err = s.Town(created.TownID)
	assert.ErrorIs(t, err, ErrTownNotFound)
}

func TestJoinTown(t *testing.T) {
	s, media := newTestService(&Config{})
	ctx := context.Background()

	created, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "my town", PubliclyListed: true})
	require.NoError(t, err)

	resp, err := s.JoinTown(ctx, &JoinTownParams{
		TownID:              created.TownID,
		Username:            "alice",
		StreamingCredential: `{"access_token":"tok","expiry":1700000000}`,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "alice", resp.Session.Participant.Username)
	assert.NotEmpty(t, resp.Session.VideoCredential)
	assert.Len(t, resp.Participants, 1)
	assert.Empty(t, resp.Areas)

	raw, ok := media.credentials[resp.Session.Participant.ID]
	require.True(t, ok, "streaming credential must be stored")
	assert.Contains(t, raw, "tok")
}

func TestJoinTownNotFound(t *testing.T) {
	s, _ := newTestService(&Config{})

	_, err := s.JoinTown(context.Background(), &JoinTownParams{TownID: "missing", Username: "alice"})
	assert.ErrorIs(t, err, ErrTownNotFound)
}

func TestJoinTownFull(t *testing.T) {
	s, _ := newTestService(&Config{DefaultCapacity: 1})
	ctx := context.Background()

	created, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "tiny town", PubliclyListed: true})
	require.NoError(t, err)

	_, err = s.JoinTown(ctx, &JoinTownParams{TownID: created.TownID, Username: "alice"})
	require.NoError(t, err)

	_, err = s.JoinTown(ctx, &JoinTownParams{TownID: created.TownID, Username: "bob"})
	assert.ErrorIs(t, err, ErrTownFull)
}

func TestJoinTownConcurrentCapacity(t *testing.T) {
	s, _ := newTestService(&Config{DefaultCapacity: 1})
	ctx := context.Background()

	created, err := s.CreateTown(ctx, &CreateTownParams{FriendlyName: "tiny town", PubliclyListed: true})
	require.NoError(t, err)

	const joiners = 32

	var wg sync.WaitGroup
	var successes, rejections atomic.Int32
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.JoinTown(ctx, &JoinTownParams{
				TownID:   created.TownID,
				Username: fmt.Sprintf("user%d", i),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrTownFull):
				rejections.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load(), "exactly one join may win the last slot")
	assert.Equal(t, int32(joiners-1), rejections.Load())

	ctrl, err := s.Town(created.TownID)
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.Occupancy())
}
