package repository

import (
	"Solvextra/entity"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) SaveRating(ctx context.Context, r *entity.SatisfactionRating) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ratingsCollection)
	_, err = collection.InsertOne(ctx, r)
	if err != nil {
		return fmt.Errorf("mongodb insert rating: %w", err)
	}
	return nil
}

func (m *MongoDB) ListRatings(ctx context.Context) ([]entity.SatisfactionRating, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ratingsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var ratings []entity.SatisfactionRating
	if err = cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("mongodb decode ratings: %w", err)
	}
	return ratings, nil
}
