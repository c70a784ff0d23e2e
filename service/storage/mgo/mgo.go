package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mgoOnce sync.Once
	mgoMgr  *Manager
)

type Manager struct {
	client   *mongo.Client
	database *mongo.Database
}

type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// Init connects the shared Mongo client used for reading history.
func Init(ctx context.Context, cfg Config) error {
	var initErr error
	mgoOnce.Do(func() {
		if cfg.MaxPoolSize == 0 {
			cfg.MaxPoolSize = 20
		}
		opts := options.Client().ApplyURI(cfg.URI).SetMaxPoolSize(cfg.MaxPoolSize)

		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := mongo.Connect(connCtx, opts)
		if err != nil {
			initErr = errors.Wrap(err, "mongo connect")
			return
		}
		if err := client.Ping(connCtx, nil); err != nil {
			initErr = errors.Wrap(err, "mongo ping")
			return
		}

		mgoMgr = &Manager{client: client, database: client.Database(cfg.Database)}
	})
	return initErr
}

// Database returns the shared database handle.
func Database() *mongo.Database {
	if mgoMgr == nil {
		panic("mongo not initialized, call mgo.Init first")
	}
	return mgoMgr.database
}

// Close disconnects the shared client.
func Close(ctx context.Context) error {
	if mgoMgr != nil && mgoMgr.client != nil {
		return mgoMgr.client.Disconnect(ctx)
	}
	return nil
}
