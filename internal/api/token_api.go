package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// TokenAPI lets an authenticated app install register or drop its device token
// on the caller's own users/{uid} record.
type TokenAPI struct {
	Users  dispatch.UserDirectory
	Logger *slog.Logger
}

func NewTokenAPI(users dispatch.UserDirectory, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Users:  users,
		Logger: logger,
	}
}

type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// PutToken handles PUT /api/v1/users/me/fcm-token.
func (api *TokenAPI) PutToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Users.SetFCMToken(ctx, userID, req.Token); err != nil {
		api.Logger.Error("failed to store device token", "user_id", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteToken handles DELETE /api/v1/users/me/fcm-token. It is idempotent.
func (api *TokenAPI) DeleteToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := api.Users.ClearFCMToken(ctx, userID); err != nil {
		api.Logger.Warn("failed to clear device token", "user_id", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to clear token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
