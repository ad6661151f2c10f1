package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/townsquare/server/internal/service/towns"
	"github.com/townsquare/server/internal/town"
	"github.com/townsquare/server/pkg/validator"
)

type iTownsService interface {
	CreateTown(context.Context, *towns.CreateTownParams) (towns.CreateTownResponse, error)
	ListTowns(context.Context) []towns.TownSummary
	UpdateTown(context.Context, *towns.UpdateTownParams) error
	DeleteTown(context.Context, *towns.DeleteTownParams) error
	JoinTown(context.Context, *towns.JoinTownParams) (towns.JoinTownResponse, error)
	Town(townID string) (*town.Controller, error)
}

type controller struct {
	townsService iTownsService
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	logger       *slog.Logger
}

func NewController(townsService iTownsService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		townsService: townsService,
		validate:     validator.NewValidator(),
		logger:       logger,
	}
}
