package repository

import (
	"context"
	"fmt"
	"time"

	"crmrt/internal/domain"
	"crmrt/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// isoMillis matches the timestamp format the web client already stores.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// PublicIDField is the identifier field exposed on the wire.
const PublicIDField = "id"

// RecordRepository is the CRUD access for one domain resource. Every record it
// returns is normalized: the store identifier is projected to a string "id"
// and "_id" is removed.
type RecordRepository struct {
	res  domain.Resource
	coll store.Collection
	now  func() time.Time
}

func NewRecordRepository(s store.Store, res domain.Resource) *RecordRepository {
	return &RecordRepository{res: res, coll: s.Collection(res.Collection), now: time.Now}
}

func (r *RecordRepository) Resource() domain.Resource {
	return r.res
}

func (r *RecordRepository) List(ctx context.Context) ([]map[string]any, error) {
	docs, err := r.coll.Find(ctx, store.FindOptions{
		SortField:  r.res.SortField,
		Descending: r.res.Descending,
		Limit:      r.res.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = Normalize(d)
	}
	return out, nil
}

func (r *RecordRepository) Get(ctx context.Context, id string) (map[string]any, error) {
	oid, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := r.coll.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return Normalize(doc), nil
}

func (r *RecordRepository) Create(ctx context.Context, body map[string]any) (map[string]any, error) {
	fields := r.res.ShapeCreate(withoutIDs(body))
	ts := r.now().UTC().Format(isoMillis)
	fields["createdAt"] = ts
	fields["updatedAt"] = ts

	oid, err := r.coll.Insert(ctx, bson.M(fields))
	if err != nil {
		return nil, err
	}
	doc := bson.M(fields)
	doc[store.IDField] = oid
	return Normalize(doc), nil
}

// Update applies body and returns the record as persisted afterwards.
func (r *RecordRepository) Update(ctx context.Context, id string, body map[string]any) (map[string]any, error) {
	oid, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}
	fields := r.res.ShapeUpdate(withoutIDs(body))
	delete(fields, "createdAt")
	fields["updatedAt"] = r.now().UTC().Format(isoMillis)

	if err := r.coll.UpdateByID(ctx, oid, bson.M(fields)); err != nil {
		return nil, err
	}
	doc, err := r.coll.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return Normalize(doc), nil
}

func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	oid, err := store.ParseID(id)
	if err != nil {
		return err
	}
	return r.coll.DeleteByID(ctx, oid)
}

// Normalize projects the store identifier onto a string "id" field and drops
// the internal one.
func Normalize(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == store.IDField {
			continue
		}
		out[k] = v
	}
	switch id := doc[store.IDField].(type) {
	case primitive.ObjectID:
		out[PublicIDField] = id.Hex()
	case nil:
		out[PublicIDField] = ""
	default:
		out[PublicIDField] = fmt.Sprint(id)
	}
	return out
}

func withoutIDs(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		if k == store.IDField || k == PublicIDField {
			continue
		}
		out[k] = v
	}
	return out
}
