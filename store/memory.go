package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/eringen/pagecraft/content"
)

const (
	documentsTable = "documents"
	mediaTable     = "media"

	indexID   = "id"
	indexSlug = "slug"
)

// record is the memdb row for a document. The document itself is kept
// JSON-encoded so callers never share section content with the database.
type record struct {
	ID   string
	Type string
	Slug string
	Data []byte
}

func memorySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			documentsTable: {
				Name: documentsTable,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexSlug: {
						Name:   indexSlug,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Type"},
								&memdb.StringFieldIndex{Field: "Slug"},
							},
						},
					},
				},
			},
			mediaTable: {
				Name: mediaTable,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Filename"},
					},
				},
			},
		},
	}
}

// MemoryStore is a Store backed by an in-process go-memdb database.
type MemoryStore struct {
	db *memdb.MemDB
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &MemoryStore{db: db}, nil
}

func decodeRecord(raw any) (content.Document, error) {
	var d content.Document
	if err := json.Unmarshal(raw.(*record).Data, &d); err != nil {
		return content.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, f Filter) ([]content.Document, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(documentsTable, indexID)
	if err != nil {
		return nil, err
	}
	var docs []content.Document
	for raw := it.Next(); raw != nil; raw = it.Next() {
		d, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if f.match(d) {
			docs = append(docs, d)
		}
	}
	SortDocuments(docs)
	return docs, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (content.Document, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(documentsTable, indexID, id)
	if err != nil {
		return content.Document{}, err
	}
	if raw == nil {
		return content.Document{}, ErrNotFound
	}
	return decodeRecord(raw)
}

func (s *MemoryStore) GetBySlug(_ context.Context, t content.DocType, slug string) (content.Document, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(documentsTable, indexSlug, string(t), slug)
	if err != nil {
		return content.Document{}, err
	}
	if raw == nil {
		return content.Document{}, ErrNotFound
	}
	return decodeRecord(raw)
}

func (s *MemoryStore) SaveDocument(_ context.Context, d *content.Document) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	taken, err := txn.First(documentsTable, indexSlug, string(d.Type), d.Slug)
	if err != nil {
		return err
	}
	if taken != nil && taken.(*record).ID != d.ID {
		return fmt.Errorf("%w: %s/%s", ErrSlugTaken, d.Type, d.Slug)
	}
	existing, err := txn.First(documentsTable, indexID, d.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		prev, err := decodeRecord(existing)
		if err != nil {
			return err
		}
		d.CreatedAt = prev.CreatedAt
	}

	prepare(d, now())
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := txn.Insert(documentsTable, &record{ID: d.ID, Type: string(d.Type), Slug: d.Slug, Data: data}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(documentsTable, indexID, id); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) ListTags(ctx context.Context) ([]string, error) {
	posts, err := s.ListDocuments(ctx, Filter{Type: content.TypePost, PublishedOnly: true})
	if err != nil {
		return nil, err
	}
	return content.SortedTags(posts), nil
}

func (s *MemoryStore) ListMedia(_ context.Context) ([]Media, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(mediaTable, indexID)
	if err != nil {
		return nil, err
	}
	var items []Media
	for raw := it.Next(); raw != nil; raw = it.Next() {
		items = append(items, *raw.(*Media))
	}
	sortMedia(items)
	return items, nil
}

func (s *MemoryStore) SaveMedia(_ context.Context, m Media) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if m.UploadedAt.IsZero() {
		m.UploadedAt = now()
	}
	if err := txn.Insert(mediaTable, &m); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) DeleteMedia(_ context.Context, filename string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(mediaTable, indexID, filename); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Close is a no-op; the database lives as long as the MemoryStore.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
