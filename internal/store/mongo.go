package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is the production Store backed by one MongoDB database.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{coll: s.db.Collection(name)}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Insert(ctx context.Context, doc bson.M) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := cloneDoc(doc)
	stored[IDField] = id
	if _, err := c.coll.InsertOne(ctx, stored); err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return id, nil
}

func (c *mongoCollection) Find(ctx context.Context, opts FindOptions) ([]bson.M, error) {
	findOpts := options.Find()
	if opts.SortField != "" {
		dir := 1
		if opts.Descending {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortField, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cur, err := c.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	docs := []bson.M{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

func (c *mongoCollection) FindByID(ctx context.Context, id primitive.ObjectID) (bson.M, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, bson.M{IDField: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s in %s: %w", id.Hex(), c.coll.Name(), err)
	}
	return doc, nil
}

func (c *mongoCollection) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set = cloneDoc(set)
	delete(set, IDField)
	if len(set) == 0 {
		_, err := c.FindByID(ctx, id)
		return err
	}
	res, err := c.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s in %s: %w", id.Hex(), c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{IDField: id}); err != nil {
		return fmt.Errorf("delete %s in %s: %w", id.Hex(), c.coll.Name(), err)
	}
	return nil
}

func (c *mongoCollection) Upsert(ctx context.Context, filter, set bson.M) error {
	_, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert in %s: %w", c.coll.Name(), err)
	}
	return nil
}
