package rating

import (
	"Solvextra/entity"
	"context"
)

type Core interface {
	ListRatings(ctx context.Context) ([]entity.SatisfactionRating, error)
}
