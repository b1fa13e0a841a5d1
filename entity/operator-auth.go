package entity

import (
	"Solvextra/internal/lib/validate"
	"net/http"
)

const (
	OperatorRoleAgent = "agent"
	OperatorRoleAdmin = "admin"
)

// OperatorAuth is the authenticated console identity bound to a request.
// AgentID is empty for admin-key callers with no agent profile.
type OperatorAuth struct {
	Username string `json:"username" bson:"username" validate:"required"`
	AgentID  string `json:"agent_id" bson:"agent_id" validate:"omitempty"`
	Role     string `json:"role" bson:"role" validate:"required"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
}

func (o *OperatorAuth) Bind(_ *http.Request) error {
	return validate.Struct(o)
}

func (o *OperatorAuth) IsAdmin() bool {
	return o.Role == OperatorRoleAdmin
}
