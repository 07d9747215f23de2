package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"preorder/internal/config"
	"preorder/internal/domain/model"
	"preorder/internal/handler"
	"preorder/internal/infra/db"
	infraRepo "preorder/internal/infra/repository"
	"preorder/internal/logger"
	"preorder/internal/server"
	"preorder/internal/stock"
	"preorder/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めないときは既定のロガーで落とす
		bootLog := logger.NewWithWriter(config.LogConfig{}, os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg.DB)
	must(log, err, "db connect")
	must(log, db.Migrate(gormDB), "db migrate")

	loc, err := cfg.Quota.Location()
	must(log, err, "timezone")

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	quotaRepo := infraRepo.NewQuotaGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	clock := usecase.RealClock{}
	codec := model.NewOrderCodec(cfg.Quota.OrderCodePrefix)
	quota := usecase.NewQuotaAccountant(quotaRepo, clock, loc, cfg.Quota.DailyLimit)

	//残数配信
	broadcaster := stock.NewBroadcaster(quota, log)
	go broadcaster.Run(ctx)

	var notifier stock.Notifier = broadcaster
	if cfg.Events.Bus == "amqp" {
		conn, err := amqp.Dial(cfg.Events.AMQPURL)
		must(log, err, "amqp dial")
		defer conn.Close()

		amqpNotifier, err := stock.NewAMQPNotifier(conn, cfg.Events.Exchange, log)
		must(log, err, "amqp notifier")
		defer amqpNotifier.Close()
		must(log, stock.ConsumeAMQP(ctx, conn, cfg.Events.Exchange, broadcaster, log), "amqp consumer")
		notifier = amqpNotifier
	}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txm, orderRepo, quota, codec, usecase.PickupInfo{
		Location: cfg.Pickup.Location,
		Time:     cfg.Pickup.Time,
		Note:     cfg.Pickup.Note,
	}, notifier, clock)
	adminUC := usecase.NewAdminOrderUsecase(txm, orderRepo, auditRepo, codec, notifier, clock, cfg.Quota.RecentOrdersLimit)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Orders:      handler.NewOrderHandler(orderUC),
		AdminOrders: handler.NewAdminOrderHandler(adminUC),
		Stock:       handler.NewStockHandler(broadcaster, cfg.Stream.Keepalive),
	})

	//Server起動
	addr := listenAddr(cfg.Port)
	log.Info().
		Str("addr", addr).
		Str("db", cfg.DB.Driver).
		Int("daily_limit", cfg.Quota.DailyLimit).
		Str("event_bus", cfg.Events.Bus).
		Msg("starting preorder api")

	if err := server.Start(ctx, e, addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Warn().Msg("shut down")
}

// "8080" も ":8080" も受ける
func listenAddr(port string) string {
	if port != "" && port[0] != ':' {
		return ":" + port
	}
	return port
}

func must(log zerolog.Logger, err error, what string) {
	if err != nil {
		log.Fatal().Err(err).Msg(what)
	}
}
