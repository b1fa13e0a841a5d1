package cont

import (
	"Solvextra/entity"
	"context"
)

type contextKey string

const operatorKey contextKey = "operator"

// PutOperator binds the authenticated operator to the request context.
func PutOperator(ctx context.Context, op *entity.OperatorAuth) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// Operator returns the authenticated operator, or nil outside the
// authenticate middleware.
func Operator(ctx context.Context) *entity.OperatorAuth {
	op, _ := ctx.Value(operatorKey).(*entity.OperatorAuth)
	return op
}
