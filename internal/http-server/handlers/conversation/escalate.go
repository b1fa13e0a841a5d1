package conversation

import (
	"Solvextra/internal/service/routing"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type EscalateRequest struct {
	Reason            string `json:"reason"`
	AdminOnlyFallback bool   `json:"admin_only_fallback"`
}

// Escalate hands a conversation to the human side, either claimable by
// any available agent or, with no agents online, to the admin alert or
// ticket fallback.
func Escalate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		var req EscalateRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}
		if req.Reason == "" {
			req.Reason = "manual escalation"
		}

		err := handler.Escalate(r.Context(), id, req.Reason, req.AdminOnlyFallback)
		if err != nil {
			switch {
			case errors.Is(err, routing.ErrConversationNotFound):
				http.Error(w, "Conversation not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrWrongStatus):
				http.Error(w, "Conversation cannot be escalated", http.StatusConflict)
			default:
				log.Error("Failed to escalate conversation", slog.Any("error", err))
				http.Error(w, "Failed to escalate conversation", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
