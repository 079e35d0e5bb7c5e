package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const callTimeout = 5 * time.Second

// MongoGateway implements Gateway over a single mongo collection. Every call
// runs through the circuit breaker with a per-call timeout.
type MongoGateway struct {
	coll    *mongo.Collection
	breaker *gobreaker.CircuitBreaker
}

func NewMongoGateway(coll *mongo.Collection, breaker *gobreaker.CircuitBreaker) *MongoGateway {
	return &MongoGateway{coll: coll, breaker: breaker}
}

// run executes op through the breaker. Missing documents and unique-index
// violations are answers, not store failures; they are smuggled out as the
// breaker's success value so they do not count toward tripping it.
func (g *MongoGateway) run(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	outcome, err := g.breaker.Execute(func() (interface{}, error) {
		err := op(ctx)
		switch {
		case err == nil:
			return nil, nil
		case errors.Is(err, mongo.ErrNoDocuments):
			return ErrNotFound, nil
		case mongo.IsDuplicateKeyError(err):
			return ErrDuplicateKey, nil
		default:
			return nil, err
		}
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		return outcome.(error)
	}
	return nil
}

func (g *MongoGateway) FindByID(ctx context.Context, id string, projection bson.M, result interface{}) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return g.run(ctx, func(ctx context.Context) error {
		opts := options.FindOne()
		if projection != nil {
			opts.SetProjection(projection)
		}
		return g.coll.FindOne(ctx, bson.M{"_id": objID}, opts).Decode(result)
	})
}

func (g *MongoGateway) Find(ctx context.Context, filter bson.M, findOpts FindOptions, results interface{}) error {
	return g.run(ctx, func(ctx context.Context) error {
		opts := options.Find()
		if findOpts.Sort != nil {
			opts.SetSort(findOpts.Sort)
		}
		if findOpts.Projection != nil {
			opts.SetProjection(findOpts.Projection)
		}
		if findOpts.Skip != nil {
			opts.SetSkip(*findOpts.Skip)
		}
		if findOpts.Limit != nil {
			opts.SetLimit(*findOpts.Limit)
		}
		cursor, err := g.coll.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		return cursor.All(ctx, results)
	})
}

func (g *MongoGateway) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	var count int64
	err := g.run(ctx, func(ctx context.Context) error {
		var err error
		count, err = g.coll.CountDocuments(ctx, filter)
		return err
	})
	return count, err
}

func (g *MongoGateway) InsertOne(ctx context.Context, doc interface{}) (string, error) {
	var insertedID string
	err := g.run(ctx, func(ctx context.Context) error {
		result, err := g.coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		if objID, ok := result.InsertedID.(primitive.ObjectID); ok {
			insertedID = objID.Hex()
		}
		return nil
	})
	return insertedID, err
}

// UpdateByID applies update to the document with the given id. Updating a
// document that no longer exists is a no-op, not an error; callers that need
// existence guarantees fetch first.
func (g *MongoGateway) UpdateByID(ctx context.Context, id string, update bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	return g.run(ctx, func(ctx context.Context) error {
		_, err := g.coll.UpdateOne(ctx, bson.M{"_id": objID}, update)
		return err
	})
}

func (g *MongoGateway) UpdateMany(ctx context.Context, filter bson.M, update bson.M) error {
	return g.run(ctx, func(ctx context.Context) error {
		_, err := g.coll.UpdateMany(ctx, filter, update)
		return err
	})
}

func (g *MongoGateway) DeleteByID(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	return g.run(ctx, func(ctx context.Context) error {
		_, err := g.coll.DeleteOne(ctx, bson.M{"_id": objID})
		return err
	})
}

// EnsureUserIndexes creates the unique email index that backs duplicate
// detection on user creation.
func EnsureUserIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
