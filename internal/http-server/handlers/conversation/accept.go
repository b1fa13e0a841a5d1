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

type AcceptRequest struct {
	AgentID string `json:"agent_id"`
}

// Accept claims an escalated conversation for the calling agent. The
// first accept wins; later calls get a conflict.
func Accept(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		agentID := ""
		if op := cont.Operator(r.Context()); op != nil {
			agentID = op.AgentID
		}
		// Admins accept on behalf of an agent.
		if agentID == "" && r.Body != nil && r.ContentLength != 0 {
			var req AcceptRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			agentID = req.AgentID
		}

		conv, err := handler.Accept(r.Context(), id, agentID)
		if err != nil {
			switch {
			case errors.Is(err, routing.ErrConversationNotFound):
				http.Error(w, "Conversation not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrNotAgent), errors.Is(err, routing.ErrUnknownAgent):
				http.Error(w, "Agent identity required", http.StatusForbidden)
			case errors.Is(err, routing.ErrWindowExpired):
				http.Error(w, "Acceptance window expired", http.StatusGone)
			case errors.Is(err, routing.ErrNotPending):
				http.Error(w, "Conversation already taken", http.StatusConflict)
			default:
				log.Error("Failed to accept conversation", slog.Any("error", err))
				http.Error(w, "Failed to accept conversation", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conv)
	}
}
