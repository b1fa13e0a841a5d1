package conversation

import (
	"Solvextra/entity"
	"Solvextra/internal/service/routing"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ConvertRequest struct {
	Title    string                `json:"title"`
	Priority entity.TicketPriority `json:"priority"`
}

// Convert turns a live conversation into an offline ticket.
func Convert(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		var req ConvertRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		ticket, err := handler.ConvertToTicket(r.Context(), id, req.Title, req.Priority)
		if err != nil {
			switch {
			case errors.Is(err, routing.ErrConversationNotFound):
				http.Error(w, "Conversation not found", http.StatusNotFound)
			case errors.Is(err, routing.ErrWrongStatus):
				http.Error(w, "Conversation cannot be converted", http.StatusConflict)
			default:
				log.Error("Failed to convert conversation", slog.Any("error", err))
				http.Error(w, "Failed to convert conversation", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ticket)
	}
}
