// Package store is the gateway to the document store. Lifecycle services
// talk to it through the Gateway interface only; the mongo implementation
// owns connection details, per-call timeouts and circuit breaking.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound reports that no document matched the given id.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey reports a unique-index violation on insert or update.
	ErrDuplicateKey = errors.New("duplicate key")
)

// FindOptions mirrors the cursor modifiers the store supports. Nil or zero
// fields are not applied.
type FindOptions struct {
	Sort       bson.M
	Projection bson.M
	Skip       *int64
	Limit      *int64
}

// Gateway exposes the per-collection document operations the services use.
type Gateway interface {
	FindByID(ctx context.Context, id string, projection bson.M, result interface{}) error
	Find(ctx context.Context, filter bson.M, opts FindOptions, results interface{}) error
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	InsertOne(ctx context.Context, doc interface{}) (string, error)
	UpdateByID(ctx context.Context, id string, update bson.M) error
	UpdateMany(ctx context.Context, filter bson.M, update bson.M) error
	DeleteByID(ctx context.Context, id string) error
}

// ObjectIDs converts hex ids to ObjectIDs. Values that are not valid object
// ids are skipped: they can address no document, so including them in an
// $in filter would change nothing.
func ObjectIDs(ids []string) []primitive.ObjectID {
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objIDs = append(objIDs, objID)
	}
	return objIDs
}

// IDFilter builds the filter matching any document whose id is in ids.
func IDFilter(ids []string) bson.M {
	return bson.M{"_id": bson.M{"$in": ObjectIDs(ids)}}
}
