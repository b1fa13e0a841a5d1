package agent

import (
	"Solvextra/internal/lib/api/cont"
	"Solvextra/internal/lib/validate"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type CreateRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name" validate:"omitempty"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (r *CreateRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// Create registers an agent profile. Admin only. The response carries
// the agent's console token once; it is not readable afterwards.
func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := cont.Operator(r.Context())
		if op == nil || !op.IsAdmin() {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}

		var req CreateRequest
		if err := render.Bind(r, &req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		agent, err := handler.CreateAgent(r.Context(), req.Username, req.Name, req.Email)
		if err != nil {
			log.Error("Failed to create agent", slog.Any("error", err))
			http.Error(w, "Failed to create agent", http.StatusInternalServerError)
			return
		}

		var response struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Token    string `json:"token"`
		}
		response.ID = agent.ID
		response.Username = agent.Username
		response.Token = agent.Token

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
