package conversation

import (
	"Solvextra/internal/lib/api/cont"
	"Solvextra/internal/service/routing"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AssignRequest struct {
	AgentID string `json:"agent_id"`
}

// Assign forces a conversation onto an agent regardless of status.
// Admin only.
func Assign(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := cont.Operator(r.Context())
		if op == nil || !op.IsAdmin() {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.AgentID == "" {
			http.Error(w, "Agent id required", http.StatusBadRequest)
			return
		}

		conv, err := handler.AssignAgent(r.Context(), id, req.AgentID)
		if err != nil {
			switch {
			case errors.Is(err, routing.ErrConversationNotFound):
				http.Error(w, "Conversation not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrUnknownAgent):
				http.Error(w, "Agent not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrWrongStatus):
				http.Error(w, "Conversation cannot be assigned", http.StatusConflict)
			default:
				log.Error("Failed to assign conversation", slog.Any("error", err))
				http.Error(w, "Failed to assign conversation", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conv)
	}
}
