package conversation

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := handler.ListConversations(r.Context())
		if err != nil {
			log.Error("Failed to list conversations", slog.Any("error", err))
			http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conversations)
	}
}
