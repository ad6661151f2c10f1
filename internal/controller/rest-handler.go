package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/townsquare/server/internal/service/towns"
	"github.com/townsquare/server/internal/town"
	"github.com/townsquare/server/pkg/rest"
)

type createTownRequest struct {
	FriendlyName   string `json:"friendly_name" validate:"required,max=64"`
	PubliclyListed bool   `json:"publicly_listed"`
}

type createTownResponse struct {
	TownID         string `json:"town_id"`
	UpdatePassword string `json:"update_password"`
}

func (c *controller) CreateTown(w http.ResponseWriter, r *http.Request) {
	var req createTownRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "create town: read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.townsService.CreateTown(r.Context(), &towns.CreateTownParams{
		FriendlyName:   req.FriendlyName,
		PubliclyListed: req.PubliclyListed,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "create town", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": createTownResponse{
		TownID:         resp.TownID,
		UpdatePassword: resp.UpdatePassword,
	}})
}

func (c *controller) ListTowns(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": c.townsService.ListTowns(r.Context())})
}

type updateTownRequest struct {
	UpdatePassword string  `json:"update_password" validate:"required"`
	FriendlyName   *string `json:"friendly_name"`
	PubliclyListed *bool   `json:"publicly_listed"`
}

func (c *controller) UpdateTown(w http.ResponseWriter, r *http.Request) {
	var req updateTownRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	err := c.townsService.UpdateTown(r.Context(), &towns.UpdateTownParams{
		TownID:         chi.URLParam(r, "town-id"),
		UpdatePassword: req.UpdatePassword,
		FriendlyName:   req.FriendlyName,
		PubliclyListed: req.PubliclyListed,
	})
	if err != nil {
		c.writeTownError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c *controller) DeleteTown(w http.ResponseWriter, r *http.Request) {
	err := c.townsService.DeleteTown(r.Context(), &towns.DeleteTownParams{
		TownID:         chi.URLParam(r, "town-id"),
		UpdatePassword: chi.URLParam(r, "town-password"),
	})
	if err != nil {
		c.writeTownError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

type joinTownRequest struct {
	TownID              string `json:"town_id" validate:"required"`
	Username            string `json:"username" validate:"required,max=32"`
	StreamingCredential string `json:"streaming_credential"`
}

type joinTownResponse struct {
	SessionToken      string                   `json:"session_token"`
	ParticipantID     string                   `json:"participant_id"`
	VideoCredential   string                   `json:"video_credential"`
	Participants      []*town.Participant      `json:"participants"`
	ConversationAreas []*town.ConversationArea `json:"conversation_areas"`
}

func (c *controller) JoinTown(w http.ResponseWriter, r *http.Request) {
	var req joinTownRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.townsService.JoinTown(r.Context(), &towns.JoinTownParams{
		TownID:              req.TownID,
		Username:            req.Username,
		StreamingCredential: req.StreamingCredential,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "join town", "town_id", req.TownID, "error", err)
		switch {
		case errors.Is(err, towns.ErrTownNotFound):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
		case errors.Is(err, towns.ErrTownFull):
			rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": err.Error()})
		default:
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinTownResponse{
		SessionToken:      resp.Session.Token,
		ParticipantID:     resp.Session.Participant.ID,
		VideoCredential:   resp.Session.VideoCredential,
		Participants:      resp.Participants,
		ConversationAreas: resp.Areas,
	}})
}

type createAreaRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
	Label        string `json:"label" validate:"required,max=64"`
	Topic        string `json:"topic" validate:"required"`
	BoundingBox  struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width" validate:"gt=0"`
		Height float64 `json:"height" validate:"gt=0"`
	} `json:"bounding_box"`
}

func (c *controller) CreateConversationArea(w http.ResponseWriter, r *http.Request) {
	var req createAreaRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	ctrl, err := c.townsService.Town(chi.URLParam(r, "town-id"))
	if err != nil {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
		return
	}
	if _, err := ctrl.SessionByToken(req.SessionToken); err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	created := ctrl.CreateConversationArea(&town.ConversationArea{
		Label: req.Label,
		Topic: req.Topic,
		BoundingBox: town.BoundingBox{
			X:      req.BoundingBox.X,
			Y:      req.BoundingBox.Y,
			Width:  req.BoundingBox.Width,
			Height: req.BoundingBox.Height,
		},
	})
	if !created {
		rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "conversation area rejected"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c *controller) writeTownError(w http.ResponseWriter, r *http.Request, err error) {
	c.logger.InfoContext(r.Context(), "town request failed", "error", err)
	switch {
	case errors.Is(err, towns.ErrTownNotFound):
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
	case errors.Is(err, towns.ErrInvalidPassword):
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
	case errors.Is(err, towns.ErrEmptyName):
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
	default:
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
	}
}
