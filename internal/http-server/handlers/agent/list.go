package agent

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agents, err := handler.ListAgents(r.Context())
		if err != nil {
			log.Error("Failed to list agents", slog.Any("error", err))
			http.Error(w, "Failed to list agents", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agents)
	}
}
