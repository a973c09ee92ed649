package store

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

// record is the concrete struct go-memdb indexes on — its indexer is
// reflection-based and needs a real struct field, not a map key, which is
// why the document payload is carried as an opaque blob alongside ID.
type record struct {
	ID   string
	Data map[string]interface{}
}

// MemStore is a Store backed by an in-process hashicorp/go-memdb database,
// one table per collection (type name). It is safe for concurrent use: all
// mutating operations run inside a go-memdb write transaction, which
// go-memdb itself serializes against concurrent writers, matching the
// "atomic one-object operations, single-writer-serialized" store contract
// in spec.md §5.
type MemStore struct {
	mu          sync.Mutex
	db          *memdb.MemDB
	collections map[string]bool
}

// NewMemStore builds a MemStore with one table per name in collections.
func NewMemStore(collections []string) (*MemStore, error) {
	db, err := buildDB(collections)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}
	return &MemStore{db: db, collections: set}, nil
}

func buildDB(collections []string) (*memdb.MemDB, error) {
	tables := make(map[string]*memdb.TableSchema, len(collections))
	for _, c := range collections {
		tables[c] = &memdb.TableSchema{
			Name: c,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		}
	}
	return memdb.NewMemDB(&memdb.DBSchema{Tables: tables})
}

// Rebuild replaces the underlying database with a fresh, empty one scoped
// to collections; existing data is dropped, not migrated. The server's
// schema (re)import does not call it: it installs a new MemStore instead.
func (s *MemStore) Rebuild(collections []string) error {
	db, err := buildDB(collections)
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
	s.collections = set
	return nil
}

// Collections returns the collection names this store currently serves.
func (s *MemStore) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.collections))
	for c := range s.collections {
		out = append(out, c)
	}
	return out
}

// newID mints an opaque 24-character hex ID the way a Mongo-style
// ObjectID looks, by keeping the first 24 hex digits of a random UUIDv4.
// Those 96 bits include the 6 fixed version/variant bits, so 122 bits of
// entropy drop to 90: a deliberate tradeoff for a short, URL-friendly ID;
// collision risk at this service's scale is negligible.
func newID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:24]
}

func (s *MemStore) InsertOne(collection string, data map[string]interface{}) (string, error) {
	id := newID()
	rec := &record{ID: id, Data: deepCopyMap(data)}

	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.db.Txn(true)
	if err := txn.Insert(collection, rec); err != nil {
		txn.Abort()
		return "", err
	}
	txn.Commit()
	return id, nil
}

func (s *MemStore) FindOneByID(collection, id string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(collection, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, unknownID(collection, id)
	}
	return deepCopyMap(raw.(*record).Data), nil
}

func (s *MemStore) UpdateOne(collection, id string, mutate func(map[string]interface{}) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.Txn(true)
	raw, err := txn.First(collection, "id", id)
	if err != nil {
		txn.Abort()
		return err
	}
	if raw == nil {
		txn.Abort()
		return unknownID(collection, id)
	}

	data := deepCopyMap(raw.(*record).Data)
	if err := mutate(data); err != nil {
		txn.Abort()
		return err
	}
	if err := txn.Insert(collection, &record{ID: id, Data: data}); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemStore) IterateCollection(collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(collection, "id")
	if err != nil {
		return nil, err
	}
	var ids []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		ids = append(ids, raw.(*record).ID)
	}
	return ids, nil
}
