// Command server runs the dataspace portal backend: the /config and /onboard
// API, the agent webhook receivers, and the audit pipeline.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	connstore "dataspace/internal/connection/store"
	connmemory "dataspace/internal/connection/store/memory"
	connpostgres "dataspace/internal/connection/store/postgres"
	ddahandler "dataspace/internal/dda/handler"
	ddametrics "dataspace/internal/dda/metrics"
	ddaservice "dataspace/internal/dda/service"
	ddastore "dataspace/internal/dda/store"
	ddamemory "dataspace/internal/dda/store/memory"
	ddapostgres "dataspace/internal/dda/store/postgres"
	rechandler "dataspace/internal/ddarecord/handler"
	recservice "dataspace/internal/ddarecord/service"
	recstore "dataspace/internal/ddarecord/store"
	recmemory "dataspace/internal/ddarecord/store/memory"
	recpostgres "dataspace/internal/ddarecord/store/postgres"
	"dataspace/internal/jwttoken"
	onboardhandler "dataspace/internal/onboard/handler"
	onboardservice "dataspace/internal/onboard/service"
	onboardstore "dataspace/internal/onboard/store"
	onboardmemory "dataspace/internal/onboard/store/memory"
	onboardpostgres "dataspace/internal/onboard/store/postgres"
	orghandler "dataspace/internal/organisation/handler"
	orgservice "dataspace/internal/organisation/service"
	orgstore "dataspace/internal/organisation/store"
	orgmemory "dataspace/internal/organisation/store/memory"
	orgpostgres "dataspace/internal/organisation/store/postgres"
	"dataspace/internal/platform/config"
	"dataspace/internal/platform/httpserver"
	"dataspace/internal/platform/logger"
	"dataspace/internal/platform/metrics"
	"dataspace/internal/platform/middleware"
	platformpg "dataspace/internal/platform/postgres"
	platformredis "dataspace/internal/platform/redis"
	"dataspace/internal/reconcile"
	"dataspace/internal/reconcile/ledger"
	reconcilemetrics "dataspace/internal/reconcile/metrics"
	httptransport "dataspace/internal/transport/http"
	webhookhandler "dataspace/internal/webhook/handler"
	"dataspace/pkg/platform/audit"
	auditpublisher "dataspace/pkg/platform/audit/publisher"
	auditmemory "dataspace/pkg/platform/audit/store/memory"
	auditpostgres "dataspace/pkg/platform/audit/store/postgres"
	auditworker "dataspace/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformpg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := platformpg.Migrate(ctx, db); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores. Postgres when configured, memory otherwise.
	var (
		templates   ddastore.Store
		records     recstore.Store
		connections connstore.Store
		organisatns orgstore.Store
		users       onboardstore.Store
		eventLedger ledger.Ledger
		storeTx     reconcile.StoreTx
	)
	switch {
	case db != nil:
		templates = ddapostgres.New(db)
		records = recpostgres.New(db)
		connections = connpostgres.New(db)
		organisatns = orgpostgres.New(db)
		users = onboardpostgres.New(db)
		// The postgres ledger joins the transition transaction, keeping
		// the idempotency mark atomic with the record write.
		eventLedger = ledger.NewPostgres(db)
		storeTx = newPostgresStoreTx(db)
	default:
		templates = ddamemory.New()
		records = recmemory.New()
		connections = connmemory.New()
		organisatns = orgmemory.New()
		users = onboardmemory.New()
		eventLedger = ledger.NewMemory()
		storeTx = reconcile.PassthroughTx{}
		if redisClient != nil {
			eventLedger = ledger.NewRedis(redisClient.Client)
		}
	}

	// Audit pipeline: Kafka when brokers are configured, otherwise an
	// in-process worker draining a channel into the audit store.
	var (
		publisher audit.Publisher
		worker    *auditworker.Worker
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := auditpublisher.NewKafka(ctx, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka audit publisher failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafka.Close(closeCtx)
		}()
		publisher = kafka
	} else {
		var auditStore audit.Store = auditmemory.New()
		if cfg.DatabaseURL != "" {
			pool, err := platformpg.OpenPool(ctx, cfg.DatabaseURL)
			if err != nil {
				log.Error("pgx pool for audit store failed", "error", err)
				os.Exit(1)
			}
			defer pool.Close()
			auditStore = auditpostgres.New(pool)
		}
		channel := auditpublisher.New(1024, log)
		worker = auditworker.New(auditStore, channel.Inbox(), log)
		publisher = channel
	}

	httpMetrics := metrics.New()
	templateMetrics := ddametrics.New()
	engineMetrics := reconcilemetrics.New()

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	orgSvc := orgservice.New(organisatns,
		orgservice.WithLogger(log),
		orgservice.WithAuditPublisher(publisher),
	)
	engine := reconcile.New(records, templates, connections, eventLedger,
		reconcile.NewRecordTx(storeTx),
		reconcile.WithLogger(log),
		reconcile.WithAuditPublisher(publisher),
		reconcile.WithMetrics(engineMetrics),
		reconcile.WithVerificationResolver(orgSvc),
	)
	templateSvc := ddaservice.New(templates, records,
		ddaservice.WithLogger(log),
		ddaservice.WithAuditPublisher(publisher),
		ddaservice.WithMetrics(templateMetrics),
	)
	recordSvc := recservice.New(records, engine, log)
	onboardSvc := onboardservice.New(users, tokens, onboardservice.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Deps{
		Templates:      ddahandler.New(templateSvc, log),
		Records:        rechandler.New(recordSvc, log),
		DataSrc:        orghandler.New(orgSvc, log),
		Onboard:        onboardhandler.New(onboardSvc, log),
		Webhooks:       webhookhandler.New(engine, log),
		Auth:           middleware.RequireAuth(jwttoken.NewServiceAdapter(tokens), log),
		RequestTimeout: middleware.Timeout(cfg.RequestTimeout),
		Logger:         log,
		Metrics:        httpMetrics,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
