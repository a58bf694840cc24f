package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/types"
)

const maxJSONBodyBytes = 1 << 20

var (
	errInvalidRequest = errors.New("invalid request")
	errInvalidBool    = errors.New("invalid boolean value")
	errInvalidInt     = errors.New("invalid integer value")
	errInvalidDate    = errors.New("invalid date, expected YYYY-MM-DD or RFC 3339")
)

type contextKey string

const (
	contextActorKey contextKey = "actor"
	contextUserKey  contextKey = "user"
)

// ErrorResponse is the error payload of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MessageResponse acknowledges a mutation without a body.
type MessageResponse struct {
	Message string `json:"message"`
}

func withIdentity(ctx context.Context, user types.User) context.Context {
	ctx = context.WithValue(ctx, contextUserKey, user)
	return context.WithValue(ctx, contextActorKey, policy.ActorFromUser(user))
}

func actorFromContext(ctx context.Context) (policy.Actor, error) {
	actor, ok := ctx.Value(contextActorKey).(policy.Actor)
	if !ok || actor.ID == "" {
		return policy.Actor{}, errors.New("missing actor")
	}
	return actor, nil
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID == "" {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

// currentActor returns the authenticated actor or writes a 401.
func currentActor(w http.ResponseWriter, r *http.Request) (policy.Actor, bool) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return policy.Actor{}, false
	}
	return actor, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error kind to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	var serviceErr *services.Error
	if !errors.As(err, &serviceErr) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch serviceErr.Kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindAuthorization:
		status = http.StatusForbidden
	case services.KindAuthentication:
		status = http.StatusUnauthorized
	case services.KindConflict:
		status = http.StatusConflict
	case services.KindUpstream:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{
		Error:  serviceErr.Message,
		Kind:   string(serviceErr.Kind),
		Reason: serviceErr.Reason,
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
