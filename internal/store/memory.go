package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[primitive.ObjectID]bson.M)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

type memoryCollection struct {
	mu    sync.RWMutex
	order []primitive.ObjectID
	docs  map[primitive.ObjectID]bson.M
}

func (c *memoryCollection) Insert(_ context.Context, doc bson.M) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := cloneDoc(doc)
	stored[IDField] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

func (c *memoryCollection) Find(_ context.Context, opts FindOptions) ([]bson.M, error) {
	c.mu.RLock()
	out := make([]bson.M, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneDoc(c.docs[id]))
	}
	c.mu.RUnlock()

	if opts.SortField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			cmp := compareValues(out[i][opts.SortField], out[j][opts.SortField])
			if opts.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (c *memoryCollection) FindByID(_ context.Context, id primitive.ObjectID) (bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (c *memoryCollection) UpdateByID(_ context.Context, id primitive.ObjectID, set bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range set {
		if k == IDField {
			continue
		}
		doc[k] = v
	}
	return nil
}

func (c *memoryCollection) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *memoryCollection) Upsert(_ context.Context, filter, set bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.order {
		doc := c.docs[id]
		if matches(doc, filter) {
			for k, v := range set {
				doc[k] = v
			}
			return nil
		}
	}
	id := primitive.NewObjectID()
	doc := cloneDoc(filter)
	for k, v := range set {
		doc[k] = v
	}
	doc[IDField] = id
	c.docs[id] = doc
	c.order = append(c.order, id)
	return nil
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if got, ok := doc[k]; !ok || compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

// compareValues orders numbers numerically, times chronologically and
// everything else by its string form. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
