package ticket

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, err := handler.ListOpenTickets(r.Context())
		if err != nil {
			log.Error("Failed to list tickets", slog.Any("error", err))
			http.Error(w, "Failed to list tickets", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tickets)
	}
}
