package repository

import (
	"context"
	"errors"
	"fmt"
	"noqbot/pkg/config"
	"noqbot/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "clients"
)

// ClientRepository is a read-only view of the client directory.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
}

type mongoClientRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoClientRepository(cfg *config.Config) ClientRepository {
	return &mongoClientRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoClientRepository) FindByID(ctx context.Context, id string) (*model.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	opts := options.FindOne().SetProjection(bson.M{"name": 1, "phone": 1, "is_active": 1})

	var client model.Client
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&client); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &client, nil
}

// StaticClientRepository serves a fixed set of clients.
type StaticClientRepository struct {
	clients map[string]*model.Client
}

func NewStaticClientRepository(clients ...*model.Client) *StaticClientRepository {
	m := make(map[string]*model.Client, len(clients))
	for _, c := range clients {
		m[c.ID] = c
	}
	return &StaticClientRepository{clients: m}
}

func (r *StaticClientRepository) FindByID(_ context.Context, id string) (*model.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

var _ ClientRepository = (*StaticClientRepository)(nil)
