package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/townsquare/server/internal/town"
	"github.com/townsquare/server/pkg/rest"
	"github.com/townsquare/server/pkg/wsrouter"
)

// Subscribe upgrades the connection, authenticates it against a session
// token, and runs the websocket message loop for that session. When the loop
// ends the participant is removed from the town.
func (c *controller) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctrl, err := c.townsService.Town(chi.URLParam(r, "town-id"))
	if err != nil {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
		return
	}

	sess, err := ctrl.SessionByToken(r.URL.Query().Get("token"))
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "ws upgrade failed", "error", err)
		return
	}

	listener := newWSListener(conn, c.logger)
	ctrl.Subscribe(listener)

	defer func() {
		ctrl.Unsubscribe(listener)
		ctrl.RemoveParticipant(sess)
	}()

	if err := c.getWSRouter(ctrl, sess, listener).ServeConn(r.Context(), conn); err != nil {
		c.logger.DebugContext(r.Context(), "ws connection closed",
			"town_id", ctrl.ID(), "participant_id", sess.Participant.ID, "error", err)
	}
}

func (c *controller) getWSRouter(ctrl *town.Controller, sess *town.Session, listener *wsListener) *wsrouter.WSRouter {
	mux := wsrouter.New(listener.writeError)

	mux.Handle("UPDATE_LOCATION", func(ctx context.Context, payload json.RawMessage) error {
		var loc town.Location
		if err := json.Unmarshal(payload, &loc); err != nil {
			return fmt.Errorf("decode location: %w", err)
		}

		ctrl.UpdateParticipantLocation(sess.Participant, loc)
		return nil
	})

	mux.Handle("CHAT_MESSAGE", func(ctx context.Context, payload json.RawMessage) error {
		var input struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return fmt.Errorf("decode chat message: %w", err)
		}

		ctrl.BroadcastMessage(town.ChatMessage{
			Author: sess.Participant.Username,
			Body:   input.Body,
			SentAt: time.Now(),
		})
		return nil
	})

	mux.Handle("CHANGE_SONG", func(ctx context.Context, payload json.RawMessage) error {
		var input struct {
			DisplayTitle string   `json:"display_title"`
			URIs         []string `json:"uris"`
		}
		if err := json.Unmarshal(payload, &input); err != nil {
			return fmt.Errorf("decode song: %w", err)
		}

		return ctrl.ChangeSong(ctx, sess.Participant, town.Song{
			DisplayTitle: input.DisplayTitle,
			URIs:         input.URIs,
		})
	})

	return mux
}
