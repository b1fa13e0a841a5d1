package channel

import (
	"Solvextra/internal/service/routing"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type InboundRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// Inbound is the webhook for channel integrations without a dedicated
// adapter. Every customer message for a channel lands here.
func Inbound(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "channel")
		if name == "" {
			http.Error(w, "Channel name required", http.StatusBadRequest)
			return
		}

		var req InboundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			http.Error(w, "User id required", http.StatusBadRequest)
			return
		}

		conv, err := handler.OnCustomerMessage(r.Context(), name, req.UserID, req.Name, req.Text)
		if err != nil {
			if errors.Is(err, routing.ErrInvalidMessage) {
				http.Error(w, "Message text required", http.StatusBadRequest)
				return
			}
			log.Error("Failed to handle inbound message",
				slog.String("channel", name),
				slog.Any("error", err),
			)
			http.Error(w, "Failed to handle message", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conv)
	}
}
