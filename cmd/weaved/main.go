// Command weaved is the HTTP server entry point: it wires every storage
// collaborator and domain service together and serves the API surface
// described in spec.md §6.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/collection"
	"github.com/weavehub/weave/common"
	"github.com/weavehub/weave/config"
	"github.com/weavehub/weave/db"
	"github.com/weavehub/weave/eventbus"
	"github.com/weavehub/weave/httpapi"
	"github.com/weavehub/weave/ingestion"
	"github.com/weavehub/weave/jobqueue"
	"github.com/weavehub/weave/mirror"
	"github.com/weavehub/weave/notification"
	"github.com/weavehub/weave/permission"
	"github.com/weavehub/weave/security"
	"github.com/weavehub/weave/summarizer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := common.ServiceLogger("weaved", "dev")

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.WithError(err).Fatal("loading configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	gormDB, err := db.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("opening postgres")
	}

	pgxPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("opening pgx pool")
	}
	defer pgxPool.Close()

	schemas, err := db.NewCouchDBService(db.CouchDBConfig{
		URL:             cfg.CouchDBURL,
		Database:        "assistant_schemas",
		CreateIfMissing: true,
	})
	if err != nil {
		logger.WithError(err).Fatal("connecting to couchdb")
	}
	defer schemas.Close()

	var graphRepo mirror.GraphMembershipStore
	if cfg.Neo4jURL != "" {
		repo, err := mirror.NewNeo4jGraphRepository(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			logger.WithError(err).Warn("connecting to neo4j, falling back to relational graph lookups")
		} else {
			graphRepo = repo
			defer repo.Close(ctx)
		}
	}

	eventLog := db.NewEventLogWriter(gormDB)
	if err := eventLog.Migrate(); err != nil {
		logger.WithError(err).Fatal("migrating event log")
	}

	var events eventbus.Publisher = eventbus.NoopPublisher{}
	if cfg.AMQPURL != "" {
		publisher, err := eventbus.NewRabbitPublisher(cfg.AMQPURL, "weave.events", eventLog, logger)
		if err != nil {
			logger.WithError(err).Warn("connecting to rabbitmq, domain events will not be published")
		} else {
			events = publisher
			defer publisher.Close()
		}
	}

	if err := runMigrations(gormDB, pgxPool, ctx); err != nil {
		logger.WithError(err).Fatal("running migrations")
	}

	var oidcProvider *security.OIDCProvider
	if cfg.OIDCIssuerURL != "" {
		oidcProvider, err = security.NewOIDCProvider(ctx, security.OIDCConfig{
			ProviderURL: cfg.OIDCIssuerURL,
			ClientID:    cfg.OIDCClientID,
		})
		if err != nil {
			logger.WithError(err).Warn("oidc provider discovery failed, user bearer tokens will be rejected")
		}
	}

	authConfig := auth.DefaultConfig()
	authConfig.ServiceTokenSecret = cfg.JWTSigningKey
	tokens := auth.NewTokenService(cfg.JWTSigningKey, authConfig.ServiceTokenTTL)
	userStore := auth.NewGormUserStore(gormDB)
	authSvc := auth.NewService(userStore, authConfig, tokens)

	permEngine := permission.NewEngine(gormDB)
	permMaterializer := permission.NewMaterializer(gormDB, permEngine, userStore)

	engineClient := mirror.NewHTTPEngineClient(cfg.UpstreamEngineURL, cfg.UpstreamEngineToken)
	mirrorSvc := mirror.NewService(gormDB, engineClient, schemas, graphRepo, logger)
	permMaterializer.SetGraphAssistantLister(mirrorSvc)
	authSvc.OnUserCreated(permMaterializer.GrantToNewUser)

	notifySvc := notification.NewService(gormDB, permEngine, mirrorSvc, events, time.Duration(cfg.NotificationExpiryDays)*24*time.Hour)
	notifySweeper := notification.NewSweeper(notifySvc, time.Hour, logger)
	go notifySweeper.Run(ctx)

	collStore := collection.NewStore(gormDB)
	permEngine.SetLegacyOwnerChecker(collStore)
	collUpserter := collection.NewUpserter(collStore, permEngine, nil)
	collSearcher := collection.NewSearcher(gormDB, collStore, nil)

	converterRegistry := ingestion.NewRegistry(ingestion.TextPassthrough{})
	chunker := ingestion.NewChunker()
	pipeline := ingestion.NewPipeline(converterRegistry, chunker, collUpserter)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Fatal("parsing redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	jobStore := jobqueue.NewStore(pgxPool, "job_events")
	jobQueue := jobqueue.NewQueue(redisClient, "jobqueue:pending")
	jobPool := jobqueue.NewPool(jobStore, jobQueue, ingestion.NewJobProcessor(pipeline), cfg.JobWorkerConcurrency, logger)
	go jobPool.Run(ctx)
	jobSvc := jobqueue.NewService(jobStore, jobQueue, jobPool)

	if cfg.UpstreamEngineToken != "" {
		namer := summarizer.NewOpenAINamer(openai.NewClient(cfg.UpstreamEngineToken), "gpt-4o-mini")
		threadSweeper := summarizer.NewSweeper(summarizer.NewStore(gormDB), engineClient, namer, mirrorSvc, summarizer.Config{
			Enabled:     true,
			MinInterval: time.Duration(cfg.NamingMinIntervalSecs) * time.Second,
		}, logger)
		go threadSweeper.Run(ctx)
	}

	server := httpapi.NewServer(&httpapi.Handlers{
		Auth:              authSvc,
		OIDC:              oidcProvider,
		Permissions:       permEngine,
		PublicPermissions: permMaterializer,
		Notifications:     notifySvc,
		Collections:       collStore,
		Searcher:          collSearcher,
		Upserter:          collUpserter,
		Ingestion:         pipeline,
		Jobs:              jobSvc,
		Mirror:            mirrorSvc,
		Logger:            logger,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func runMigrations(gormDB *gorm.DB, pgxPool *pgxpool.Pool, ctx context.Context) error {
	if err := auth.Migrate(gormDB); err != nil {
		return err
	}
	if err := permission.Migrate(gormDB); err != nil {
		return err
	}
	if err := notification.Migrate(gormDB); err != nil {
		return err
	}
	if err := collection.Migrate(gormDB); err != nil {
		return err
	}
	if err := mirror.Migrate(gormDB); err != nil {
		return err
	}
	if err := summarizer.Migrate(gormDB); err != nil {
		return err
	}
	return jobqueue.Migrate(ctx, pgxPool)
}
