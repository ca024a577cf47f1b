// main wires the event backbone: config, logger, stores, broker, the
// producing services, the consumer runners, and the operational HTTP surface.
// Business logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	fraudservice "github.com/Xarofive/bank-app-sub001/internal/fraud/service"
	fraudmemory "github.com/Xarofive/bank-app-sub001/internal/fraud/store/memory"
	kychandler "github.com/Xarofive/bank-app-sub001/internal/kyc/handler"
	kycservice "github.com/Xarofive/bank-app-sub001/internal/kyc/service"
	kycmemory "github.com/Xarofive/bank-app-sub001/internal/kyc/store/memory"
	notifservice "github.com/Xarofive/bank-app-sub001/internal/notifications/service"
	notifmemory "github.com/Xarofive/bank-app-sub001/internal/notifications/store/memory"
	"github.com/Xarofive/bank-app-sub001/internal/platform/config"
	"github.com/Xarofive/bank-app-sub001/internal/platform/httpserver"
	"github.com/Xarofive/bank-app-sub001/internal/platform/logger"
	platformpg "github.com/Xarofive/bank-app-sub001/internal/platform/postgres"
	platformredis "github.com/Xarofive/bank-app-sub001/internal/platform/redis"
	settingshandler "github.com/Xarofive/bank-app-sub001/internal/settings/handler"
	settingsservice "github.com/Xarofive/bank-app-sub001/internal/settings/service"
	settingsmemory "github.com/Xarofive/bank-app-sub001/internal/settings/store/memory"
	transfershandler "github.com/Xarofive/bank-app-sub001/internal/transfers/handler"
	transfersservice "github.com/Xarofive/bank-app-sub001/internal/transfers/service"
	transfersmemory "github.com/Xarofive/bank-app-sub001/internal/transfers/store/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/audit"
	audithandler "github.com/Xarofive/bank-app-sub001/pkg/platform/audit/handler"
	auditmemory "github.com/Xarofive/bank-app-sub001/pkg/platform/audit/store/memory"
	auditpg "github.com/Xarofive/bank-app-sub001/pkg/platform/audit/store/postgres"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/broker"
	brokerkafka "github.com/Xarofive/bank-app-sub001/pkg/platform/broker/kafka"
	brokermemory "github.com/Xarofive/bank-app-sub001/pkg/platform/broker/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/consumer"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/deadletter"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency"
	idemmemory "github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency/memory"
	idempg "github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency/postgres"
	idemredis "github.com/Xarofive/bank-app-sub001/pkg/platform/idempotency/redis"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/publisher"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Broker: Kafka when seed brokers are configured, in-memory otherwise.
	var brk broker.Broker
	if len(cfg.Kafka.Brokers) > 0 {
		kb, err := brokerkafka.New(brokerkafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		if err := kb.EnsureTopics(ctx, cfg.Kafka.Partitions, allTopics()...); err != nil {
			log.Error("topic bootstrap failed", "error", err)
			os.Exit(1)
		}
		brk = kb
		log.Info("broker ready", "mode", "kafka", "brokers", cfg.Kafka.Brokers)
	} else {
		brk = brokermemory.New(brokermemory.WithPartitions(cfg.Kafka.Partitions))
		log.Info("broker ready", "mode", "memory")
	}
	defer brk.Close()

	db, err := platformpg.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	// Processed-event store and audit store share the database so both join
	// the consumer's transaction. Without Postgres, Redis still gives shared
	// dedup state; memory is the last resort.
	var (
		idemStore  idempotency.Store
		auditStore audit.Store
		uowOpt     []consumer.Option
	)
	switch {
	case db != nil:
		idemStore = idempg.New(db)
		auditStore = auditpg.New(db)
		uowOpt = append(uowOpt, consumer.WithUnitOfWork(consumer.NewSQL(db)))
		log.Info("stores ready", "mode", "postgres")
	case cfg.Redis.URL != "":
		rc, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("redis connect failed", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		idemStore = idemredis.New(rc.Client, idemredis.WithTTL(cfg.Redis.MarkerTTL))
		auditStore = auditmemory.New()
		log.Info("stores ready", "mode", "redis")
	default:
		idemStore = idemmemory.New()
		auditStore = auditmemory.New()
		log.Info("stores ready", "mode", "memory")
	}

	recorder := audit.NewRecorder(auditStore)
	sink := deadletter.NewTopicSink(brk, log)

	consumerCfg := func(name string) consumer.Config {
		return consumer.Config{
			Name:         name,
			MaxAttempts:  cfg.Consumer.MaxAttempts,
			RetryBackoff: cfg.Consumer.RetryBackoff,
			UnitTimeout:  cfg.Consumer.UnitTimeout,
		}
	}
	registry := events.NewRegistry()

	fraudSvc := fraudservice.New(fraudmemory.New(), log)
	fraudRunner := consumer.New(consumerCfg("fraud"), registry, idemStore, recorder, log,
		append(uowOpt, consumer.WithDeadLetter(sink))...)
	fraudSvc.Register(fraudRunner)

	notifSvc := notifservice.New(notifmemory.New(), log)
	notifRunner := consumer.New(consumerCfg("notifications"), registry, idemStore, recorder, log,
		append(uowOpt, consumer.WithDeadLetter(sink))...)
	notifSvc.Register(notifRunner)

	// Each producing service stamps its own source name on events.
	newPublisher := func(source string) *publisher.Publisher {
		return publisher.New(brk, registry, publisher.Config{Source: source}, log)
	}
	transfersSvc := transfersservice.New(transfersmemory.New(), newPublisher("transfers"), log)
	kycSvc := kycservice.New(kycmemory.New(), newPublisher("kyc"), log)
	settingsSvc := settingsservice.New(settingsmemory.New(), newPublisher("settings"), log)

	router := chi.NewRouter()
	audithandler.New(recorder, log).Register(router)
	transfershandler.New(transfersSvc, log).Register(router)
	kychandler.New(kycSvc, log).Register(router)
	settingshandler.New(settingsSvc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fraudRunner.Run(ctx, brk) })
	g.Go(func() error { return notifRunner.Run(ctx, brk) })
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// allTopics lists every event topic plus its dead-letter companion.
func allTopics() []string {
	kinds := events.Kinds()
	topics := make([]string, 0, 2*len(kinds))
	for _, kind := range kinds {
		topics = append(topics, kind.Topic(), kind.Topic()+deadletter.TopicSuffix)
	}
	return topics
}
