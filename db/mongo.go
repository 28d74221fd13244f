package db

import (
	"context"
	"fmt"
	"time"

	"SpotiTrace/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names inside the Spotify database.
const (
	StreamingCollection = "StreamingHistory"
	SongsCollection     = "songs_master"
	ArtistsCollection   = "artists_master"
)

var (
	// Client 是全局MongoDB客户端
	Client *mongo.Client
	// Database 是配置指定的数据库句柄
	Database *mongo.Database
)

// ConnectMongo establishes the MongoDB connection and verifies it with a ping.
func ConnectMongo(cfg *config.Config) error {
	if cfg.MongoURI == "" {
		return fmt.Errorf("MongoDB connection string not found in environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// 测试连接
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	Client = client
	Database = client.Database(cfg.DatabaseName)
	return nil
}

// CloseMongo closes the MongoDB connection.
func CloseMongo() error {
	if Client != nil {
		return Client.Disconnect(context.Background())
	}
	return nil
}

// Streaming returns the StreamingHistory collection handle.
func Streaming() *mongo.Collection {
	return Database.Collection(StreamingCollection)
}

// Songs returns the songs_master collection handle.
func Songs() *mongo.Collection {
	return Database.Collection(SongsCollection)
}

// Artists returns the artists_master collection handle.
func Artists() *mongo.Collection {
	return Database.Collection(ArtistsCollection)
}
