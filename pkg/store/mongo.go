package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// ScoresCollection is the collection MongoStore reads and writes.
const ScoresCollection = "scores"

// MongoStore stores scores in a MongoDB collection keyed by _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type scoreRecord struct {
	ID        string             `bson:"_id"`
	Document  *document.Document `bson:"document"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// NewMongoStore connects to uri and pings the server. The client is
// disconnected again if the ping fails.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStoreFromClient(client, database), nil
}

// NewMongoStoreFromClient wraps an existing client.
func NewMongoStoreFromClient(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(ScoresCollection),
	}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*document.Document, error) {
	if err := errors.ValidateDocumentID(id); err != nil {
		return nil, err
	}
	var rec scoreRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find score %s: %w", id, err)
	}
	if rec.Document == nil {
		return nil, notFound(id)
	}
	// bson does not carry segment part ids or measure indices.
	for _, m := range rec.Document.Measures {
		m.Segments()
	}
	rec.Document.Reindex()
	return rec.Document, nil
}

func (s *MongoStore) Put(ctx context.Context, id string, doc *document.Document) error {
	if err := checkPut(id, doc); err != nil {
		return err
	}
	rec := scoreRecord{ID: id, Document: doc, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store score %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidateDocumentID(id); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete score %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	var recs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
