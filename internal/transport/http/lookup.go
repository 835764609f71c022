package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"livequiz-service/internal/domain"
)

// EventResolver resolves a session code to its event ahead of the websocket
// join.
type EventResolver interface {
	EventBySessionCode(ctx context.Context, code string) (domain.Event, error)
}

// LookupHandler serves the session-code lookup used by joining clients.
type LookupHandler struct {
	store EventResolver
}

func NewLookupHandler(store EventResolver) *LookupHandler {
	return &LookupHandler{store: store}
}

type lookupResponse struct {
	EventID     string `json:"eventId"`
	SessionCode string `json:"sessionCode"`
	Finished    bool   `json:"finished"`
}

func (h *LookupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	ev, err := h.store.EventBySessionCode(r.Context(), code)
	if errors.Is(err, domain.ErrEventNotFound) {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lookupResponse{
		EventID:     ev.ID,
		SessionCode: ev.SessionCode,
		Finished:    ev.Finished,
	})
}
