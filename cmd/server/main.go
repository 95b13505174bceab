package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"portfolio/internal/assembly"
	assemblyhandler "portfolio/internal/assembly/handler"
	assemblymetrics "portfolio/internal/assembly/metrics"
	assemblystore "portfolio/internal/assembly/store"
	"portfolio/internal/catalog"
	cataloghandler "portfolio/internal/catalog/handler"
	catalogstore "portfolio/internal/catalog/store"
	"portfolio/internal/evidence"
	evidencehandler "portfolio/internal/evidence/handler"
	evidencestore "portfolio/internal/evidence/store"
	httpapi "portfolio/internal/http"
	"portfolio/internal/images"
	jwttoken "portfolio/internal/jwt_token"
	"portfolio/internal/platform/config"
	"portfolio/internal/platform/httpserver"
	"portfolio/internal/platform/kafka"
	"portfolio/internal/platform/logger"
	"portfolio/internal/platform/metrics"
	"portfolio/internal/platform/postgres"
	"portfolio/internal/platform/redis"
	"portfolio/internal/portfolio/resolver"
	"portfolio/internal/profile"
	profilehandler "portfolio/internal/profile/handler"
	profilestore "portfolio/internal/profile/store"
	"portfolio/internal/render"
	"portfolio/internal/render/engine"
	"portfolio/internal/theme"
	"portfolio/internal/verification"
	verificationhandler "portfolio/internal/verification/handler"
	verificationmetrics "portfolio/internal/verification/metrics"
	verificationstore "portfolio/internal/verification/store"
	"portfolio/pkg/platform/audit"
	"portfolio/pkg/platform/audit/publishers/compliance"
	auditmemory "portfolio/pkg/platform/audit/store/memory"
	auditpostgres "portfolio/pkg/platform/audit/store/postgres"
	"portfolio/pkg/platform/audit/worker"
	txcontext "portfolio/pkg/platform/tx"
)

const shutdownTimeout = 20 * time.Second

// stores groups the persistence adapters chosen at startup.
type stores struct {
	catalog      catalogStore
	profiles     profileStore
	evidence     evidenceStore
	verification verification.Store
	documents    documentStore
	audit        audit.Store
	outbox       worker.OutboxStore
	tx           txcontext.Runner
	snapshotTx   txcontext.Runner
}

type catalogStore interface {
	catalog.Store
	resolver.CatalogReader
}

type profileStore interface {
	profile.Store
	resolver.ProfileReader
}

type evidenceStore interface {
	evidence.Store
	resolver.EvidenceReader
}

type documentStore interface {
	assembly.DocumentStore
	evidence.DocumentReferences
}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("portfolio server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthCheck{}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = postgres.Open(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		health["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}
	st := newStores(db)

	themes, err := theme.Load()
	if err != nil {
		return err
	}

	auditor := compliance.New(st.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	registry, err := verification.New(st.verification, cfg.VerificationSecret,
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New()),
		verification.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}

	catalogService := catalog.NewService(st.catalog)
	profileService := profile.New(st.profiles, profile.WithLogger(log))
	evidenceService := evidence.New(st.evidence, st.catalog, themes, registry,
		evidence.WithLogger(log),
		evidence.WithAuditPublisher(auditor),
		evidence.WithTxRunner(st.tx),
		evidence.WithDocumentReferences(st.documents),
	)

	browser, err := engine.NewRodEngine(engine.RodConfig{
		ControlURL: cfg.Render.ChromeURL,
		BinPath:    cfg.Render.ChromeBin,
	}, log)
	if err != nil {
		return err
	}
	defer browser.Close()
	pool := engine.NewPool(browser, cfg.Render.PoolSize, cfg.Render.AcquireTimeout,
		engine.WithMetrics(engine.NewMetrics()),
	)

	fetcher := images.NewHTTPFetcher(
		images.WithTimeout(cfg.Render.ImageTimeout),
		images.WithMaxBytes(cfg.Render.ImageMaxBytes),
	)
	renderer, err := render.New(registry, fetcher, cfg.PublicBaseURL, render.WithLogger(log))
	if err != nil {
		return err
	}

	contentResolver := resolver.New(
		resolver.NewStoreSnapshotSource(st.catalog, st.profiles, st.evidence, st.snapshotTx),
		resolver.WithLogger(log),
	)

	assemblerOpts := []assembly.Option{
		assembly.WithLogger(log),
		assembly.WithMetrics(assemblymetrics.New()),
		assembly.WithAuditPublisher(auditor),
		assembly.WithTxRunner(st.tx),
	}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		assemblerOpts = append(assemblerOpts, assembly.WithLocker(assembly.NewRedisLocker(rdb.Client)))
		health["redis"] = rdb.Health
		log.Info("using redis generation lock")
	}
	assembler := assembly.New(contentResolver, renderer, pool, st.documents, themes, assembly.Config{
		Limits: assembly.Limits{
			FrontMatterPages: cfg.Document.FrontMatterPages,
			MaxStandards:     cfg.Document.MaxStandards,
		},
		GenerationTimeout: cfg.Document.GenerationTimeout,
	}, assemblerOpts...)

	group, gctx := errgroup.WithContext(ctx)

	if st.outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:           cfg.Kafka.Brokers,
			ClientID:          cfg.Kafka.ClientID,
			Partitions:        3,
			ReplicationFactor: 1,
		}, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			return err
		}
		health["kafka"] = producer.Health

		outbox := worker.NewWorker(st.outbox, producer, st.tx, cfg.Kafka.AuditTopic,
			worker.WithBatchSize(cfg.Kafka.OutboxBatch),
			worker.WithPollInterval(cfg.Kafka.OutboxInterval),
			worker.WithLogger(log),
		)
		group.Go(func() error {
			if err := outbox.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit outbox publishing enabled", "topic", cfg.Kafka.AuditTopic)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Metrics:   metrics.New(),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Public: []httpapi.Registrar{
			verificationhandler.New(registry, log),
			theme.NewHandler(themes),
			cataloghandler.New(catalogService, log),
		},
		Protected: []httpapi.Registrar{
			profilehandler.New(profileService, log),
			evidencehandler.New(evidenceService, log),
			assemblyhandler.New(assembler, log),
		},
		Health:         health,
		RequestTimeout: cfg.Document.GenerationTimeout + 10*time.Second,
	})

	srv := httpserver.New(cfg.Addr, router, cfg.Document.GenerationTimeout)
	group.Go(func() error {
		log.Info("starting portfolio server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down portfolio server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			catalog:      catalogstore.NewInMemoryStore(),
			profiles:     profilestore.NewInMemoryStore(),
			evidence:     evidencestore.NewInMemoryStore(),
			verification: verificationstore.NewInMemoryStore(),
			documents:    assemblystore.NewInMemoryStore(),
			audit:        auditmemory.NewInMemoryStore(),
			tx:           txcontext.NoopRunner{},
			snapshotTx:   txcontext.NoopRunner{},
		}
	}
	auditStore := auditpostgres.New(db)
	return stores{
		catalog:      catalogstore.NewPostgres(db),
		profiles:     profilestore.NewPostgres(db),
		evidence:     evidencestore.NewPostgres(db),
		verification: verificationstore.NewPostgres(db),
		documents:    assemblystore.NewPostgres(db),
		audit:        auditStore,
		outbox:       auditStore,
		tx:           txcontext.NewPostgresRunner(db),
		snapshotTx:   txcontext.NewSnapshotRunner(db),
	}
}
