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

type MessageRequest struct {
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

// SendMessage posts an agent reply into a conversation. Sending into an
// open conversation takes it over for the sender.
func SendMessage(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, "Message text required", http.StatusBadRequest)
			return
		}

		agentID := req.AgentID
		if op := cont.Operator(r.Context()); op != nil && op.AgentID != "" {
			agentID = op.AgentID
		}
		if agentID == "" {
			http.Error(w, "Agent identity required", http.StatusForbidden)
			return
		}

		conv, err := handler.SendAgentMessage(r.Context(), id, agentID, req.Text)
		if err != nil {
			switch {
			case errors.Is(err, routing.ErrConversationNotFound):
				http.Error(w, "Conversation not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrNotAgent):
				http.Error(w, "Agent identity required", http.StatusForbidden)
			case errors.Is(err, routing.ErrInvalidMessage):
				http.Error(w, "Message text required", http.StatusBadRequest)
			case errors.Is(err, routing.ErrWrongStatus):
				http.Error(w, "Conversation is not available to this agent", http.StatusConflict)
			default:
				log.Error("Failed to send agent message", slog.Any("error", err))
				http.Error(w, "Failed to send message", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conv)
	}
}
