package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/google/uuid"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// NotificationChannel is the channel on which the kv trigger announces changes.
const NotificationChannel = "souqly_kv"

// PostgresDB is a postgres adapter for the persisted key space.
type PostgresDB struct {
	db      *pg.DB
	origin  string
	nowFunc func() time.Time
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

var (
	_ ports.KeyValueStore  = (*PostgresDB)(nil)
	_ ports.ChangeNotifier = (*PostgresDB)(nil)
)

// PostgresDBArgs are the mandatory arguments for the creation of a PostgresDB
type PostgresDBArgs struct {
	// DB is a postgres database handle
	DB *pg.DB
}

// PostgresDBOptArgs are the optional arguments for building a PostgresDB
type PostgresDBOptArgs = func(*PostgresDB)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) PostgresDBOptArgs {
	return func(p *PostgresDB) {
		p.nowFunc = nowFunc
	}
}

// WithOrigin overrides the random origin identifying the writes of this adapter.
func WithOrigin(origin string) PostgresDBOptArgs {
	return func(p *PostgresDB) {
		p.origin = origin
	}
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) PostgresDBOptArgs {
	return func(p *PostgresDB) {
		p.log = log
	}
}

// NewPostgresDB creates a new PostgresDB.
func NewPostgresDB(args PostgresDBArgs, optArgs ...PostgresDBOptArgs) (*PostgresDB, error) {
	if args.DB == nil {
		return nil, errors.New("nil db passed to postgres adapter")
	}
	p := &PostgresDB{
		db:      args.DB,
		origin:  uuid.NewString(),
		nowFunc: func() time.Time { return time.Now().UTC() },
		log:     logrus.StandardLogger(),
	}
	for _, opt := range optArgs {
		opt(p)
	}
	if strings.Contains(p.origin, ":") {
		return nil, fmt.Errorf("origin %q must not contain ':'", p.origin)
	}
	p.log = p.log.WithField("origin", p.origin)
	return p, nil
}

// Get returns the value stored under key.
func (p *PostgresDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.check(); err != nil {
		return nil, false, err
	}
	row := new(kvDB)
	err := p.db.ModelContext(ctx, row).Where("key = ?", key).Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, p.translate(err)
	}
	return []byte(row.Value), true, nil
}

// Set stores value under key.
func (p *PostgresDB) Set(ctx context.Context, key string, value []byte) error {
	return p.Apply(ctx, ports.SetOp(key, value))
}

// Delete removes key.
func (p *PostgresDB) Delete(ctx context.Context, key string) error {
	return p.Apply(ctx, ports.DeleteOp(key))
}

// Apply runs the operations in a single transaction.
func (p *PostgresDB) Apply(ctx context.Context, ops ...ports.Op) error {
	if err := p.check(); err != nil {
		return err
	}
	err := p.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		// read by the notification trigger
		if _, err := tx.ExecContext(ctx, "SELECT set_config('souqly.origin', ?, true)", p.origin); err != nil {
			return err
		}
		now := p.nowFunc()
		for _, op := range ops {
			if op.Delete {
				if _, err := tx.ModelContext(ctx, (*kvDB)(nil)).Where("key = ?", op.Key).Delete(); err != nil {
					return err
				}
				continue
			}
			row := &kvDB{Key: op.Key, Value: string(op.Value), Origin: p.origin, UpdatedAt: now}
			if _, err := tx.ModelContext(ctx, row).
				OnConflict("(key) DO UPDATE").
				Set("value = EXCLUDED.value, origin = EXCLUDED.origin, updated_at = EXCLUDED.updated_at").
				Insert(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return p.translate(err)
	}
	return nil
}

// Watch listens to the kv notifications and reports the keys with the given prefix written by
// other adapters.
func (p *PostgresDB) Watch(ctx context.Context, prefix string, fn func(key string)) (func(), error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	ln := p.db.Listen(ctx, NotificationChannel)
	ch := ln.Channel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-ch:
				if !ok {
					return
				}
				origin, key, found := strings.Cut(n.Payload, ":")
				if !found {
					p.log.WithField("payload", n.Payload).Warn("ignoring malformed kv notification")
					continue
				}
				if origin == p.origin || !strings.HasPrefix(key, prefix) {
					continue
				}
				fn(key)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			if err := ln.Close(); err != nil {
				p.log.WithError(err).Debug("error closing kv listener")
			}
			<-done
		})
	}
	return stop, nil
}

// Close marks the adapter as unavailable. The database handle is owned by the caller.
func (p *PostgresDB) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *PostgresDB) check() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("postgres adapter closed: %w", model.ErrStorageUnavailable)
	}
	return nil
}

// translate reports connectivity failures as model.ErrStorageUnavailable.
func (p *PostgresDB) translate(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%v: %w", err, model.ErrStorageUnavailable)
	}
	return err
}

type kvDB struct {
	tableName struct{} `pg:"souqly.kv"`

	// Key is the key of the entry.
	Key string `pg:"key,pk"`

	// Value is the JSON document stored under Key.
	Value string `pg:"value,use_zero"`

	// Origin identifies the adapter that last wrote the entry.
	Origin string `pg:"origin,use_zero"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `pg:"updated_at"`
}
