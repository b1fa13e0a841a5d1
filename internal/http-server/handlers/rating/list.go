package rating

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ratings, err := handler.ListRatings(r.Context())
		if err != nil {
			log.Error("Failed to list ratings", slog.Any("error", err))
			http.Error(w, "Failed to list ratings", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ratings)
	}
}
