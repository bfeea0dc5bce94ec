package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gds_terminal/internal/gds"
)

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoPNRStore keeps PNRs as documents keyed by ObjectID.
type MongoPNRStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// pnrDocument adds the document id to the stored record.
type pnrDocument struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	gds.PNR `bson:",inline"`
}

// OpenMongo connects to MongoDB and ensures the locator index.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoPNRStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = "pnrs"
	}
	s := &MongoPNRStore{client: client, collection: client.Database(cfg.Database).Collection(name)}

	_, err = s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"locator": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create locator index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *MongoPNRStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// GetByLocator retrieves a PNR by record locator.
func (s *MongoPNRStore) GetByLocator(ctx context.Context, locator string) (*gds.PNR, error) {
	var doc pnrDocument
	err := s.collection.FindOne(ctx, bson.M{"locator": locator}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := doc.PNR
	p.ID = doc.ID.Hex()
	return &p, nil
}

// Save stores a new PNR and returns its id.
func (s *MongoPNRStore) Save(ctx context.Context, p *gds.PNR) (string, error) {
	doc := pnrDocument{ID: primitive.NewObjectID(), PNR: *p}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert pnr: %w", err)
	}
	return doc.ID.Hex(), nil
}

// Update replaces a stored PNR.
func (s *MongoPNRStore) Update(ctx context.Context, id string, p *gds.PNR) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("update pnr: bad id %q", id)
	}
	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": oid}, pnrDocument{ID: oid, PNR: *p})
	if err != nil {
		return fmt.Errorf("update pnr: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update pnr %s: no such record", id)
	}
	return nil
}

// LocatorExists reports whether a locator is taken.
func (s *MongoPNRStore) LocatorExists(ctx context.Context, locator string) (bool, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"locator": locator}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
