package agent

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/api/cont"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AvailabilityRequest struct {
	Availability entity.AgentAvailability `json:"availability"`
}

// SetAvailability updates an agent's availability state. Agents may only
// change their own; admins may change anyone's.
func SetAvailability(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Agent id required", http.StatusBadRequest)
			return
		}

		op := cont.Operator(r.Context())
		if op == nil || (!op.IsAdmin() && op.AgentID != id) {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}

		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if !entity.ValidAvailability(req.Availability) {
			http.Error(w, "Invalid availability", http.StatusBadRequest)
			return
		}

		if err := handler.SetAgentAvailability(r.Context(), id, req.Availability); err != nil {
			log.Error("Failed to set availability", slog.Any("error", err))
			http.Error(w, "Failed to set availability", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
