// Package store is the document store the CRM resources and the last-seen
// table live in. Documents are keyed by a store-assigned ObjectID held in the
// "_id" field.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the store-internal identifier field.
const IDField = "_id"

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

// FindOptions narrows a Find. Zero values mean insertion order, no limit.
type FindOptions struct {
	SortField  string
	Descending bool
	Limit      int
}

type Collection interface {
	// Insert stores doc under a new ObjectID and returns it. doc is not modified.
	Insert(ctx context.Context, doc bson.M) (primitive.ObjectID, error)
	Find(ctx context.Context, opts FindOptions) ([]bson.M, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (bson.M, error)
	// UpdateByID sets the given fields; ErrNotFound if no document has id.
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error
	// DeleteByID removes the document. Deleting a missing id is not an error.
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	// Upsert sets fields on the single document matching filter, creating it
	// (filter fields included) when none matches.
	Upsert(ctx context.Context, filter, set bson.M) error
}

type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ParseID converts the public string form of an identifier.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

func cloneDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}
