package client

import (
	"context"
	"noqbot/pkg/logger"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds the process-wide storage connections. Components receive it
// through config and never dial on their own.
type Client struct {
	Mongo *mongo.Client
	Redis *redis.Client

	closeOnce sync.Once
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetRedis(log *logger.Logger, redisURL string, connTimeout time.Duration) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL", "error", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis", "error", err)
	}

	log.Info("Successfully connected to Redis")
	c.Redis = client
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if c.Mongo != nil {
			if err := c.Mongo.Disconnect(ctx); err != nil {
				log.Error("Failed to disconnect from MongoDB", "error", err)
			} else {
				log.Info("Disconnected from MongoDB")
			}
		}

		if c.Redis != nil {
			if err := c.Redis.Close(); err != nil {
				log.Error("Failed to close Redis client", "error", err)
			} else {
				log.Info("Closed Redis client")
			}
		}
	})
}
