package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/config"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

func testMongoConfig() *config.MongoDBConfig {
	return &config.MongoDBConfig{
		URI:             "mongodb://mongo-a:27017,mongo-b:27017/?replicaSet=rs0",
		Database:        "accounts",
		Timeout:         3 * time.Second,
		MaxPoolSize:     50,
		MinPoolSize:     5,
		MaxConnIdleTime: time.Minute,
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(testMongoConfig())
	require.NoError(t, opts.Validate())

	assert.ElementsMatch(t, []string{"mongo-a:27017", "mongo-b:27017"}, opts.Hosts)
	require.NotNil(t, opts.ReplicaSet)
	assert.Equal(t, "rs0", *opts.ReplicaSet)
	assert.Equal(t, uint64(50), *opts.MaxPoolSize)
	assert.Equal(t, uint64(5), *opts.MinPoolSize)
	assert.Equal(t, time.Minute, *opts.MaxConnIdleTime)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	assert.Equal(t, writeconcern.Majority(), opts.WriteConcern)
}

func TestNewMongoDB_InvalidURI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testMongoConfig()
	cfg.URI = "postgres://not-mongo"

	mdb, err := NewMongoDB(context.Background(), logger, cfg)
	assert.Error(t, err)
	assert.Nil(t, mdb)
}
