package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is a mongo adapter for the persisted key space. Deleted keys are kept as tombstones so
// that change streams can tell who deleted them.
type MongoDB struct {
	kvCollection *mongo.Collection
	origin       string
	nowFunc      func() time.Time
	log          logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

var (
	_ ports.KeyValueStore  = (*MongoDB)(nil)
	_ ports.ChangeNotifier = (*MongoDB)(nil)
)

// MongoDBArgs are the mandatory arguments for the creation of a MongoDB
type MongoDBArgs struct {
	// KVCollection is a mongo collection. Transactions and change streams need a replica set.
	KVCollection *mongo.Collection
}

// MongoDBOptArgs are the optional arguments for building a MongoDB
type MongoDBOptArgs = func(*MongoDB)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) MongoDBOptArgs {
	return func(p *MongoDB) {
		p.nowFunc = nowFunc
	}
}

// WithOrigin overrides the random origin identifying the writes of this adapter.
func WithOrigin(origin string) MongoDBOptArgs {
	return func(p *MongoDB) {
		p.origin = origin
	}
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) MongoDBOptArgs {
	return func(p *MongoDB) {
		p.log = log
	}
}

// NewMongoDB creates a new MongoDB.
func NewMongoDB(args MongoDBArgs, optArgs ...MongoDBOptArgs) (*MongoDB, error) {
	if args.KVCollection == nil {
		return nil, errors.New("nil collection passed to mongo adapter")
	}
	m := &MongoDB{
		kvCollection: args.KVCollection,
		origin:       uuid.NewString(),
		nowFunc:      func() time.Time { return time.Now().UTC() },
		log:          logrus.StandardLogger(),
	}
	for _, opt := range optArgs {
		opt(m)
	}
	m.log = m.log.WithField("origin", m.origin)
	return m, nil
}

// Get returns the value stored under key.
func (m *MongoDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.check(); err != nil {
		return nil, false, err
	}
	row := new(kvDB)
	err := m.kvCollection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, m.translate(err)
	}
	if row.Deleted {
		return nil, false, nil
	}
	return []byte(row.Value), true, nil
}

// Set stores value under key.
func (m *MongoDB) Set(ctx context.Context, key string, value []byte) error {
	return m.Apply(ctx, ports.SetOp(key, value))
}

// Delete removes key.
func (m *MongoDB) Delete(ctx context.Context, key string) error {
	return m.Apply(ctx, ports.DeleteOp(key))
}

// Apply runs the operations in a single multi-document transaction.
func (m *MongoDB) Apply(ctx context.Context, ops ...ports.Op) error {
	if err := m.check(); err != nil {
		return err
	}
	session, err := m.kvCollection.Database().Client().StartSession()
	if err != nil {
		return m.translate(err)
	}
	defer session.EndSession(ctx)

	now := m.nowFunc()
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range ops {
			if op.Delete {
				// a tombstone is only needed where there is something to delete
				if _, err := m.kvCollection.UpdateOne(sc,
					bson.D{{Key: "_id", Value: op.Key}, {Key: "deleted", Value: false}},
					bson.D{{Key: "$set", Value: bson.D{
						{Key: "value", Value: ""},
						{Key: "deleted", Value: true},
						{Key: "origin", Value: m.origin},
						{Key: "updated_at", Value: now},
					}}},
				); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := m.kvCollection.UpdateOne(sc,
				bson.D{{Key: "_id", Value: op.Key}},
				bson.D{{Key: "$set", Value: bson.D{
					{Key: "value", Value: string(op.Value)},
					{Key: "deleted", Value: false},
					{Key: "origin", Value: m.origin},
					{Key: "updated_at", Value: now},
				}}},
				options.Update().SetUpsert(true),
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return m.translate(err)
	}
	return nil
}

// Watch follows the collection change stream and reports the keys with the given prefix written
// by other adapters.
func (m *MongoDB) Watch(ctx context.Context, prefix string, fn func(key string)) (func(), error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	stream, err := m.kvCollection.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, m.translate(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			event := new(changeEvent)
			if err := stream.Decode(event); err != nil {
				m.log.WithError(err).Warn("ignoring undecodable change event")
				continue
			}
			if event.FullDocument == nil || event.FullDocument.Origin == m.origin {
				continue
			}
			if strings.HasPrefix(event.DocumentKey.ID, prefix) {
				fn(event.DocumentKey.ID)
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			m.log.WithError(err).Error("change stream interrupted, cross-tab sync stopped")
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

// Close marks the adapter as unavailable. The client is owned by the caller.
func (m *MongoDB) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MongoDB) check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("mongo adapter closed: %w", model.ErrStorageUnavailable)
	}
	return nil
}

// translate reports connectivity failures as model.ErrStorageUnavailable.
func (m *MongoDB) translate(err error) error {
	if mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%v: %w", err, model.ErrStorageUnavailable)
	}
	return err
}

type kvDB struct {
	// Key is the key of the entry.
	Key string `bson:"_id"`

	// Value is the JSON document stored under Key.
	Value string `bson:"value"`

	// Deleted marks a tombstone.
	Deleted bool `bson:"deleted"`

	// Origin identifies the adapter that last wrote the entry.
	Origin string `bson:"origin"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `bson:"updated_at"`
}

type changeEvent struct {
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *kvDB `bson:"fullDocument"`
}
