package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sealedbid/tender-service/internal/middleware"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
)

// callerID reads the authenticated subject placed on the context by
// AuthMiddleware.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw, _ := r.Context().Value(middleware.ContextKeyUserID).(string)
	if raw == "" {
		return uuid.Nil, &utils.AppError{
			StatusCode: http.StatusUnauthorized,
			Code:       utils.ErrCodeUnauthorized,
			Message:    "Missing userID in context",
		}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &utils.AppError{
			StatusCode: http.StatusUnauthorized,
			Code:       utils.ErrCodeUnauthorized,
			Message:    "Invalid userID format",
			Err:        err,
		}
	}
	return id, nil
}

func callerRole(r *http.Request) models.Role {
	role, _ := r.Context().Value(middleware.ContextKeyRole).(models.Role)
	return role
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &utils.AppError{
			StatusCode: http.StatusBadRequest,
			Code:       utils.ErrCodeInvalidPayload,
			Message:    "Invalid id in path",
			Err:        err,
		}
	}
	return id, nil
}
