package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-pg/pg/v10"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rbroggi/souqly/internal/actors/gateway"
	grpcactor "github.com/rbroggi/souqly/internal/actors/grpc"
	"github.com/rbroggi/souqly/internal/actors/memory"
	mongoactor "github.com/rbroggi/souqly/internal/actors/mongo"
	postgresactor "github.com/rbroggi/souqly/internal/actors/postgres"
	promactor "github.com/rbroggi/souqly/internal/actors/prometheus"
	produceractor "github.com/rbroggi/souqly/internal/actors/pubsub/producer"
	subscriberactor "github.com/rbroggi/souqly/internal/actors/pubsub/subscriber"
	"github.com/rbroggi/souqly/internal/config"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/rbroggi/souqly/internal/core/usecase"
	log "github.com/sirupsen/logrus"
)

func init() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	// Output to stdout instead of the default stderr
	log.SetOutput(os.Stdout)
}

const shutdownTimeout = 10 * time.Second

var configPath = flag.String("config", "", "path of an optional YAML configuration file")

// backend is a key space the server owns.
type backend interface {
	ports.KeyValueStore
	Close()
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	store, release, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []usecase.OptArgs{usecase.WithRecorder(promactor.NewRecorder(reg))}

	identity := usecase.NewIdentityStore(ctx, usecase.IdentityStoreArgs{Store: store}, opts...)

	var (
		events     ports.AccountEventHandler
		subscriber *subscriberactor.Subscriber
	)
	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.Project)
		if err != nil {
			return err
		}
		defer client.Close()

		topic := client.Topic(cfg.PubSub.Topic)
		defer topic.Stop()
		producer, err := produceractor.NewProducer(topic)
		if err != nil {
			return err
		}
		events = usecase.NewInformer(producer)
		subscriber = subscriberactor.NewSubscriber(subscriberactor.SubscriberArgs{
			Subscription:        client.Subscription(cfg.PubSub.Subscription),
			AccountEventHandler: identity,
		})
	}

	registry := usecase.NewAccountRegistry(usecase.AccountRegistryArgs{
		Store:    store,
		Identity: identity,
		Events:   events,
	}, opts...)
	collectionArgs := usecase.CollectionArgs{Store: store, Identity: identity}
	cart := usecase.NewCart(collectionArgs, opts...)
	defer cart.Close()
	favorites := usecase.NewFavorites(collectionArgs, opts...)
	defer favorites.Close()
	departments := usecase.NewFavoriteDepartments(collectionArgs, opts...)
	defer departments.Close()
	session := usecase.NewSession(usecase.SessionArgs{
		Registry:    registry,
		Identity:    identity,
		Transferers: []usecase.GuestTransferer{cart, favorites, departments},
	}, opts...)

	health := grpcactor.NewHealthService(grpcactor.HealthServiceArgs{Store: store})

	mux := runtime.NewServeMux()
	gw := gateway.NewGateway(gateway.GatewayArgs{
		Session:     session,
		Identity:    identity,
		Registry:    registry,
		Cart:        cart,
		Favorites:   favorites,
		Departments: departments,
		Health:      health,
	}, gateway.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	if err := gw.Register(mux); err != nil {
		return err
	}
	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	s := grpc.NewServer()
	health.Register(s)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(lis)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return health.Run(ctx, cfg.Health.Interval)
	})
	if subscriber != nil {
		g.Go(func() error {
			return subscriber.Consume(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down servers")
		health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.GracefulStop()
		return err
	})

	log.
		WithField("http-server-addr", cfg.HTTP.Addr).
		WithField("grpc-server-addr", cfg.GRPC.Addr).
		WithField("backend", cfg.Backend).
		WithField("pubsub", cfg.PubSub.Enabled).
		Info("servers up or soon to be up. listening to SIGTERM, SIGINT, SIGQUIT for stoping the server")

	return g.Wait()
}

// openBackend connects the configured key space. release frees the underlying connection.
func openBackend(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pgOpts, err := pg.ParseURL(cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		db := pg.Connect(pgOpts)
		if err := db.Ping(ctx); err != nil {
			log.WithError(err).Error("db does not appear to be reachable")
			_ = db.Close()
			return nil, nil, err
		}
		store, err := postgresactor.NewPostgresDB(postgresactor.PostgresDBArgs{DB: db})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
		if err != nil {
			return nil, nil, err
		}
		release := func() { _ = client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			log.WithError(err).Error("db does not appear to be reachable")
			release()
			return nil, nil, err
		}
		collection := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		store, err := mongoactor.NewMongoDB(mongoactor.MongoDBArgs{KVCollection: collection})
		if err != nil {
			release()
			return nil, nil, err
		}
		return store, release, nil

	default:
		log.Warn("memory backend selected, state is lost on restart")
		return memory.NewSpace().Handle(), func() {}, nil
	}
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("server terminated")
	}
}
