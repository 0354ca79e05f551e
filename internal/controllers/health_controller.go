package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/utils"
)

// Pinger is satisfied by *app.App.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	backend Pinger
}

func NewHealthController(backend Pinger) *HealthController {
	return &HealthController{backend: backend}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := c.backend.Ping(ctx); err != nil {
		utils.Logger.WithError(err).Error("Backing store unreachable")
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Backing store unreachable", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthResponse{Status: "OK"})
}
