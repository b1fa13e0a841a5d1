package conversation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultHistoryLimit = 50

// History returns recent messages for a conversation, newest first.
func History(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		offset := 0
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				offset = n
			}
		}

		messages, err := handler.GetMessages(r.Context(), id, limit, offset)
		if err != nil {
			log.Error("Failed to get messages", slog.Any("error", err))
			http.Error(w, "Failed to get messages", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	}
}

// Get returns a single conversation.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "Conversation id required", http.StatusBadRequest)
			return
		}

		conv, err := handler.GetConversation(r.Context(), id)
		if err != nil {
			log.Error("Failed to get conversation", slog.Any("error", err))
			http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
			return
		}
		if conv == nil {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conv)
	}
}
