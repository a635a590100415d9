package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
)

// ConnectMongo initializes and returns a *mongo.Client for the given
// connection URI.
//
// Parameters:
// - uri: MongoDB connection URI of a tenant store.
// - retries: number of additional connection attempts on failure.
//
// Returns:
// - *mongo.Client: the connected MongoDB client object.
//
// Notes:
// - The connection is verified with a ping before the client is returned.
// - Attempts are spaced with exponential backoff starting at one second.
func ConnectMongo(uri string, retries int) (*mongo.Client, error) {
	if uri == "" {
		return nil, common.NewError(common.ErrCodeMongoConnect, "mongodb connection URI is empty", nil)
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(10).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := mongo.Connect(ctx, clientOptions)
		cancel()
		if err != nil {
			lastErr = err
			logger.GetAppLogger().WithError(err).Warnf("MongoDB connect attempt %d failed", attempt+1)
			continue
		}

		ctxPing, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
		err = client.Ping(ctxPing, nil)
		cancelPing()
		if err != nil {
			lastErr = err
			logger.GetAppLogger().WithError(err).Warnf("MongoDB ping attempt %d failed", attempt+1)
			_ = client.Disconnect(context.Background())
			continue
		}

		logger.GetAppLogger().Info("Successfully connected to MongoDB")
		return client, nil
	}

	return nil, common.NewError(common.ErrCodeMongoConnect, "failed to connect to MongoDB", lastErr)
}

// CloseMongo closes the MongoDB client connection.
func CloseMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Disconnect(context.TODO()); err != nil {
		logger.GetAppLogger().WithError(err).Error("Failed to disconnect MongoDB client")
		return err
	}
	return nil
}

// backoff returns the sleep duration before the given retry attempt,
// doubling per attempt and capped at 30 seconds.
func backoff(attempt int) time.Duration {
	d := time.Second << (attempt - 1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
