package repository

import (
	"context"
	"time"

	"crmrt/internal/models"
	"crmrt/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LastSeenStore persists the last moment each user was confirmed present.
type LastSeenStore interface {
	// Touch upserts the record for username with at.
	Touch(ctx context.Context, username string, at time.Time) error
	List(ctx context.Context) ([]models.LastSeen, error)
}

// DocumentLastSeenRepository keeps last-seen records in a document store
// collection, one document per username.
type DocumentLastSeenRepository struct {
	coll store.Collection
}

func NewDocumentLastSeenRepository(s store.Store, collection string) *DocumentLastSeenRepository {
	return &DocumentLastSeenRepository{coll: s.Collection(collection)}
}

func (r *DocumentLastSeenRepository) Touch(ctx context.Context, username string, at time.Time) error {
	return r.coll.Upsert(ctx, bson.M{"username": username}, bson.M{"lastSeen": at.UTC()})
}

func (r *DocumentLastSeenRepository) List(ctx context.Context) ([]models.LastSeen, error) {
	docs, err := r.coll.Find(ctx, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]models.LastSeen, 0, len(docs))
	for _, d := range docs {
		name, _ := d["username"].(string)
		if name == "" {
			continue
		}
		out = append(out, models.LastSeen{Username: name, LastSeen: asTime(d["lastSeen"])})
	}
	return out, nil
}

// asTime reads BSON dates as well as the ISO strings older clients wrote.
func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case primitive.DateTime:
		return t.Time().UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
