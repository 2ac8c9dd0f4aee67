package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eringen/pagecraft/content"
)

const (
	documentsCollection = "documents"
	mediaCollection     = "media"
)

// MongoStore is a Store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	docs   *mongo.Collection
	media  *mongo.Collection
}

// OpenMongo connects to uri, selects database and makes sure the indexes
// exist.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &MongoStore{
		client: client,
		docs:   client.Database(database).Collection(documentsCollection),
		media:  client.Database(database).Collection(mediaCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("type_slug"),
		},
		{
			Keys:    bson.D{{Key: "published", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index().SetName("published_date"),
		},
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("tags"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoDocument is the stored shape of a content.Document.
type mongoDocument struct {
	ID         string         `bson:"_id"`
	Type       string         `bson:"type"`
	Slug       string         `bson:"slug"`
	Title      string         `bson:"title"`
	Summary    string         `bson:"summary,omitempty"`
	Tags       []string       `bson:"tags"`
	Date       string         `bson:"date"`
	CoverImage string         `bson:"cover_image,omitempty"`
	Published  bool           `bson:"published"`
	ShowInNav  bool           `bson:"show_in_nav"`
	NavOrder   int            `bson:"nav_order"`
	Sections   []mongoSection `bson:"sections"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

type mongoSection struct {
	ID      string `bson:"id"`
	Kind    string `bson:"kind"`
	Hidden  bool   `bson:"hidden,omitempty"`
	Content bson.D `bson:"content"`
}

// Section content types only carry JSON tags, so content crosses into BSON
// through extended JSON. That keeps a single schema definition per kind.

func encodeContent(c content.Content) (bson.D, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeContent(kind content.Kind, d bson.D) (content.Content, error) {
	return content.DecodeContent(kind, func(target any) error {
		if len(d) == 0 {
			return nil
		}
		b, err := bson.MarshalExtJSON(d, false, false)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, target)
	})
}

func toMongo(d content.Document) (mongoDocument, error) {
	m := mongoDocument{
		ID:         d.ID,
		Type:       string(d.Type),
		Slug:       d.Slug,
		Title:      d.Title,
		Summary:    d.Summary,
		Tags:       d.Tags,
		Date:       d.Date,
		CoverImage: d.CoverImage,
		Published:  d.Published,
		ShowInNav:  d.ShowInNav,
		NavOrder:   d.NavOrder,
		Sections:   make([]mongoSection, 0, len(d.Sections)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	for _, s := range d.Sections {
		c, err := encodeContent(s.Content)
		if err != nil {
			return mongoDocument{}, fmt.Errorf("encode section %s: %w", s.ID, err)
		}
		m.Sections = append(m.Sections, mongoSection{ID: s.ID, Kind: string(s.Kind), Hidden: s.Hidden, Content: c})
	}
	return m, nil
}

func fromMongo(m mongoDocument) (content.Document, error) {
	d := content.Document{
		ID:         m.ID,
		Type:       content.DocType(m.Type),
		Slug:       m.Slug,
		Title:      m.Title,
		Summary:    m.Summary,
		Tags:       m.Tags,
		Date:       m.Date,
		CoverImage: m.CoverImage,
		Published:  m.Published,
		ShowInNav:  m.ShowInNav,
		NavOrder:   m.NavOrder,
		Sections:   make([]content.Section, 0, len(m.Sections)),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if len(d.Tags) == 0 {
		d.Tags = nil
	}
	for _, s := range m.Sections {
		kind := content.Kind(s.Kind)
		c, err := decodeContent(kind, s.Content)
		if err != nil {
			return content.Document{}, fmt.Errorf("decode section %s: %w", s.ID, err)
		}
		d.Sections = append(d.Sections, content.Section{ID: s.ID, Kind: kind, Hidden: s.Hidden, Content: c})
	}
	return d, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, f Filter) ([]content.Document, error) {
	query := bson.D{}
	if f.Type != "" {
		query = append(query, bson.E{Key: "type", Value: string(f.Type)})
	}
	if f.PublishedOnly {
		query = append(query, bson.E{Key: "published", Value: true})
	}
	// Tags are stored normalized, so an exact array element match is enough.
	if tag := content.NormalizeTags([]string{f.Tag}); len(tag) == 1 {
		query = append(query, bson.E{Key: "tags", Value: tag[0]})
	}

	cur, err := s.docs.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cur.Close(ctx)

	var docs []content.Document
	for cur.Next(ctx) {
		var m mongoDocument
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		d, err := fromMongo(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	SortDocuments(docs)
	return docs, nil
}

func (s *MongoStore) findOne(ctx context.Context, query bson.D) (content.Document, error) {
	var m mongoDocument
	err := s.docs.FindOne(ctx, query).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return content.Document{}, ErrNotFound
	}
	if err != nil {
		return content.Document{}, fmt.Errorf("find document: %w", err)
	}
	return fromMongo(m)
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (content.Document, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) GetBySlug(ctx context.Context, t content.DocType, slug string) (content.Document, error) {
	return s.findOne(ctx, bson.D{{Key: "type", Value: string(t)}, {Key: "slug", Value: slug}})
}

func (s *MongoStore) SaveDocument(ctx context.Context, d *content.Document) error {
	var prev struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err := s.docs.FindOne(ctx, bson.D{{Key: "_id", Value: d.ID}},
		options.FindOne().SetProjection(bson.D{{Key: "created_at", Value: 1}})).Decode(&prev)
	switch {
	case err == nil:
		d.CreatedAt = prev.CreatedAt
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("find document: %w", err)
	}

	prepare(d, now())
	m, err := toMongo(*d)
	if err != nil {
		return err
	}
	_, err = s.docs.ReplaceOne(ctx, bson.D{{Key: "_id", Value: d.ID}}, m, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s/%s", ErrSlugTaken, d.Type, d.Slug)
	}
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.docs.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *MongoStore) ListTags(ctx context.Context) ([]string, error) {
	values, err := s.docs.Distinct(ctx, "tags", bson.D{
		{Key: "type", Value: string(content.TypePost)},
		{Key: "published", Value: true},
	})
	if err != nil {
		return nil, fmt.Errorf("distinct tags: %w", err)
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *MongoStore) ListMedia(ctx context.Context) ([]Media, error) {
	cur, err := s.media.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}
	var items []Media
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	sortMedia(items)
	return items, nil
}

func (s *MongoStore) SaveMedia(ctx context.Context, m Media) error {
	if m.UploadedAt.IsZero() {
		m.UploadedAt = now()
	}
	_, err := s.media.ReplaceOne(ctx, bson.D{{Key: "_id", Value: m.Filename}}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save media: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteMedia(ctx context.Context, filename string) error {
	if _, err := s.media.DeleteOne(ctx, bson.D{{Key: "_id", Value: filename}}); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

var _ Store = (*MongoStore)(nil)
