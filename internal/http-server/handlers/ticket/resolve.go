package ticket

import (
	"Solvextra/internal/service/routing"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Resolve closes a ticket and its conversation. No survey is sent for
// ticket resolutions.
func Resolve(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Ticket id required", http.StatusBadRequest)
			return
		}

		ticket, err := handler.ResolveTicket(r.Context(), id)
		if err != nil {
			if errors.Is(err, routing.ErrTicketNotFound) {
				http.Error(w, "Ticket not found", http.StatusNotFound)
				return
			}
			log.Error("Failed to resolve ticket", slog.Any("error", err))
			http.Error(w, "Failed to resolve ticket", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ticket)
	}
}
