package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/i-gras/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func userFromContext(ctx context.Context) (types.PublicUser, error) {
	user, ok := ctx.Value(contextUserKey).(types.PublicUser)
	if !ok || user.ID < 1 {
		return types.PublicUser{}, errors.New("missing user")
	}
	return user, nil
}

func withUser(ctx context.Context, user types.PublicUser) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
