package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townsquare/server/internal/service/towns"
	"github.com/townsquare/server/internal/streaming"
	"github.com/townsquare/server/internal/town"
	"github.com/townsquare/server/internal/video"
)

func TestTownLifecycle(t *testing.T) {
	// slog.SetLogLoggerLevel requires Go 1.22; set a debug-level default
	// handler directly so the test builds on Go 1.21.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// An empty player keeps the reconciliation loop quiet for the whole
	// scenario.
	streamingAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer streamingAPI.Close()

	videoClient, err := video.NewClient(&video.Config{
		APIKey:    "test-key",
		APISecret: "test-secret",
	}, slog.Default())
	require.NoError(t, err)

	tokenStore := streaming.NewTokenStore()
	streamingClient := streaming.NewClient(&streaming.Config{
		APIURL: streamingAPI.URL,
	}, tokenStore, slog.Default())

	service := towns.NewService(videoClient, streamingClient, slog.Default(), &towns.Config{
		DefaultCapacity: 25,
	})

	ctx := context.Background()

	// create town
	createTownParams := towns.CreateTownParams{
		FriendlyName:   "test town",
		PubliclyListed: true,
	}
	createTownResp, err := service.CreateTown(ctx, &createTownParams)
	require.NoError(t, err)
	assert.NotEmpty(t, createTownResp.TownID, "town id is empty")
	assert.NotEmpty(t, createTownResp.UpdatePassword, "update password is empty")
	t.Log("town created")

	// participant 1 joins with a streaming credential
	join1Resp, err := service.JoinTown(ctx, &towns.JoinTownParams{
		TownID:              createTownResp.TownID,
		Username:            "user1",
		StreamingCredential: `{"access_token":"token1","expiry":1700000000}`,
	})
	require.NoError(t, err)
	require.NotNil(t, join1Resp.Session)
	assert.NotEmpty(t, join1Resp.Session.Token, "session token is empty")
	assert.NotEmpty(t, join1Resp.Session.VideoCredential, "video credential is empty")
	assert.Equal(t, join1Resp.Session.Participant.Username, "user1", "username is not equal")
	assert.Equal(t, len(join1Resp.Participants), 1, "town must contain 1 participant")

	cred, ok := tokenStore.Get(createTownResp.TownID, join1Resp.Session.Participant.ID)
	require.True(t, ok, "streaming credential must be stored")
	assert.Equal(t, cred.AccessToken, "token1", "access token is not equal")
	t.Log("participant 1 joined")

	// participant 2 joins without a streaming credential
	join2Resp, err := service.JoinTown(ctx, &towns.JoinTownParams{
		TownID:   createTownResp.TownID,
		Username: "user2",
	})
	require.NoError(t, err)
	assert.Equal(t, len(join2Resp.Participants), 2, "town must contain 2 participants")
	t.Log("participant 2 joined")

	ctrl, err := service.Town(createTownResp.TownID)
	require.NoError(t, err)

	// the join token resolves to the session
	sess, err := ctrl.SessionByToken(join1Resp.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Participant.ID, join1Resp.Session.Participant.ID, "participant id is not equal")

	// participant 1 creates a conversation area and walks into it
	area := &town.ConversationArea{
		Label: "lounge",
		Topic: "music",
		BoundingBox: town.BoundingBox{
			X: 200, Y: 200, Width: 100, Height: 100,
		},
	}
	require.True(t, ctrl.CreateConversationArea(area), "area must be created")

	ctrl.UpdateParticipantLocation(join1Resp.Session.Participant, town.Location{
		X: 200, Y: 200, Moving: false, ConversationLabel: "lounge",
	})
	areas := ctrl.ConversationAreas()
	require.Equal(t, len(areas), 1, "town must contain 1 area")
	assert.Equal(t, areas[0].OccupantIDs, []string{join1Resp.Session.Participant.ID}, "occupants are not equal")
	t.Log("area created")

	// participant 1 disconnects, the emptied area goes with it
	ctrl.RemoveParticipant(join1Resp.Session)
	assert.Equal(t, ctrl.Occupancy(), 1, "town must contain 1 participant")
	assert.Equal(t, len(ctrl.ConversationAreas()), 0, "town must contain no areas")
	_, ok = tokenStore.Get(createTownResp.TownID, join1Resp.Session.Participant.ID)
	assert.False(t, ok, "streaming credential must be evicted")
	t.Log("participant 1 disconnected")

	// the town is publicly listed
	summaries := service.ListTowns(ctx)
	require.Equal(t, len(summaries), 1, "listing must contain 1 town")
	assert.Equal(t, summaries[0].TownID, createTownResp.TownID, "town id is not equal")
	assert.Equal(t, summaries[0].Occupancy, 1, "occupancy is not equal")

	// delete town
	err = service.DeleteTown(ctx, &towns.DeleteTownParams{
		TownID:         createTownResp.TownID,
		UpdatePassword: createTownResp.UpdatePassword,
	})
	require.NoError(t, err)
	assert.Equal(t, len(service.ListTowns(ctx)), 0, "listing must be empty")
	t.Log("town deleted")
}

func TestAppConfigValidate(t *testing.T) {
	cfg := AppConfig{TownCapacity: 50, VideoAPISecret: "secret"}
	require.NoError(t, cfg.Validate())

	cfg = AppConfig{TownCapacity: 0, VideoAPISecret: "secret"}
	assert.Error(t, cfg.Validate())

	cfg = AppConfig{TownCapacity: 50}
	assert.Error(t, cfg.Validate())
}
