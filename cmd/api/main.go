package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/handler"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/cache"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/db"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/memory"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/messaging"
	infraRepo "github.com/Israr974/BuyZaar-sub001/internal/infra/repository"
	"github.com/Israr974/BuyZaar-sub001/internal/metrics"
	"github.com/Israr974/BuyZaar-sub001/internal/repository"
	"github.com/Israr974/BuyZaar-sub001/internal/server"
	"github.com/Israr974/BuyZaar-sub001/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 永続化の実装（postgres / memory）
type storage struct {
	tx        repository.TransactionManager
	users     repository.UserRepository
	addresses repository.AddressRepository
	products  repository.ProductRepository
	history   repository.HistoryRepository
	cartLines repository.CartLineRepository
	auditLogs repository.AuditLogRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}

	//metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	//注文イベント（KAFKA_BROKERSが空なら送らない）
	var events usecase.EventPublisher
	var kafkaPub *messaging.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		events = kafkaPub
		logger.Info("order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	//二重送信ガード（REDIS_ADDRが空なら台帳の一意制約だけ）
	idem := usecase.NewNoopIdempotencyGuard()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idem = cache.NewRedisIdempotencyGuard(rdb)
	}

	clock := usecase.SystemClock()
	ids := usecase.NewUUIDGenerator()

	reporter := usecase.NewObservabilityReporter(logger, checkoutMetrics, events, ids, clock, cfg.CollaboratorT)
	dispatcher := usecase.NewFollowUpDispatcher(usecase.FollowUpOptions{
		Workers:        cfg.FollowUp.Workers,
		QueueSize:      cfg.FollowUp.QueueSize,
		MaxAttempts:    cfg.FollowUp.MaxAttempts,
		BaseBackoff:    cfg.FollowUp.BaseBackoff,
		AttemptTimeout: cfg.CollaboratorT,
	}, reporter, logger, checkoutMetrics)

	//usecase
	catalog := usecase.NewCatalogReader(st.products, cfg.CollaboratorT)
	guard := usecase.NewAvailabilityGuard(catalog, usecase.CODPolicy{
		MaxOrderTotal:    cfg.Checkout.CODMaxOrderTotal,
		DenylistPincodes: cfg.Checkout.CODDenylistPincodes,
	})
	pricing := usecase.NewPriceEngine(usecase.PricingConfig{
		BaseShippingFee:    cfg.Checkout.BaseShippingFee,
		PerItemShippingFee: cfg.Checkout.PerItemShippingFee,
		TaxRate:            cfg.Checkout.TaxRate,
	})
	ledger := usecase.NewOrderLedger(st.tx, usecase.NewULIDOrderNumbers(), clock, logger, usecase.LedgerOptions{
		MaxNumberAttempts: cfg.Checkout.OrderNumberMaxAttempts,
		Timeout:           cfg.CollaboratorT,
	})
	inventory := usecase.NewInventoryAdjuster(st.tx, clock, cfg.CollaboratorT)
	history := usecase.NewHistoryRecorder(st.history, cfg.Checkout.HistoryLimit, cfg.CollaboratorT)

	orderUC := usecase.NewOrderUsecase(usecase.OrderDeps{
		Users:           st.users,
		Addresses:       st.addresses,
		Guard:           guard,
		Pricing:         pricing,
		Ledger:          ledger,
		Inventory:       inventory,
		History:         history,
		FollowUps:       dispatcher,
		Events:          events,
		Idempotency:     idem,
		IDs:             ids,
		Clock:           clock,
		Logger:          logger,
		Metrics:         checkoutMetrics,
		InventoryPolicy: cfg.Checkout.InventoryPolicy,
		CancelRestock:   cfg.Checkout.CancelRestockPolicy,
		Timeout:         cfg.CollaboratorT,
	})
	adminOrderUC := usecase.NewAdminOrderUsecase(ledger, inventory, dispatcher, events, cfg.Checkout.CancelRestockPolicy, logger)
	cartUC := usecase.NewCartUsecase(st.cartLines, st.products, cfg.CollaboratorT)

	srv := server.New(cfg, st.users, server.Handlers{
		Orders:      handler.NewOrderHandler(orderUC),
		Cart:        handler.NewCartHandler(cartUC),
		AdminOrders: handler.NewAdminOrderHandler(adminOrderUC),
		Inventory:   handler.NewAdminInventoryHandler(inventory),
		Audit:       handler.NewAdminAuditHandler(usecase.NewAuditLogUsecase(st.auditLogs, cfg.CollaboratorT)),
	}, logger, httpMetrics, reg)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	//graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	// 受付済みの後続タスクを流し切ってからイベント送信を閉じる
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("follow-up drain incomplete", zap.Error(err))
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka close failed", zap.Error(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func openStorage(cfg config.Config, logger *zap.Logger) (storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		s := memory.NewStore()
		return storage{
			tx:        s,
			users:     s.Users(),
			addresses: s.Addresses(),
			products:  s.Products(),
			history:   s.History(),
			cartLines: s.CartLines(),
			auditLogs: s.AuditLogs(),
		}, nil
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return storage{}, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return storage{}, err
	}
	return storage{
		tx:        infraRepo.NewTxManagerGorm(gormDB),
		users:     infraRepo.NewUserGormRepository(gormDB),
		addresses: infraRepo.NewAddressGormRepository(gormDB),
		products:  infraRepo.NewProductGormRepository(gormDB),
		history:   infraRepo.NewHistoryGormRepository(gormDB),
		cartLines: infraRepo.NewCartLineGormRepository(gormDB),
		auditLogs: infraRepo.NewAuditLogGormRepository(gormDB),
	}, nil
}
