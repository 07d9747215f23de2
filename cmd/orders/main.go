package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"preorder/internal/config"
	"preorder/internal/domain/model"
	"preorder/internal/infra/db"
	infraRepo "preorder/internal/infra/repository"
	"preorder/internal/usecase"

	"github.com/olekukonko/tablewriter"
)

// 運営者用: 最近の注文と今日の残数を表で出す
func main() {
	var (
		limit     = flag.Int("limit", 50, "number of recent orders to print")
		todayOnly = flag.Bool("today", false, "only print orders created today")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Quota.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	ctx := context.Background()
	clock := usecase.RealClock{}
	codec := model.NewOrderCodec(cfg.Quota.OrderCodePrefix)
	quota := usecase.NewQuotaAccountant(infraRepo.NewQuotaGormRepository(gdb), clock, loc, cfg.Quota.DailyLimit)
	admin := usecase.NewAdminOrderUsecase(
		infraRepo.NewTxManagerGorm(gdb),
		infraRepo.NewOrderGormRepository(gdb),
		infraRepo.NewAuditLogGormRepository(gdb),
		codec, nil, clock, cfg.Quota.RecentOrdersLimit,
	)

	orders, err := admin.ListRecent(ctx, *limit)
	if err != nil {
		log.Fatalf("list orders: %v", err)
	}
	dayStart, dayEnd := quota.DayBounds(clock.Now())

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("CODE", "NAME", "PHONE", "QTY", "DEPOSITOR", "STATUS", "CREATED")
	for _, o := range orders {
		if *todayOnly && (o.CreatedAt.Before(dayStart) || !o.CreatedAt.Before(dayEnd)) {
			continue
		}
		if err := table.Append([]string{
			o.Code,
			o.Name,
			o.Phone,
			strconv.Itoa(o.Quantity),
			o.DepositorName,
			o.Status,
			o.CreatedAt.In(loc).Format(time.DateTime),
		}); err != nil {
			log.Fatalf("table: %v", err)
		}
	}
	if err := table.Render(); err != nil {
		log.Fatalf("table: %v", err)
	}

	committed, err := quota.CommittedToday(ctx)
	if err != nil {
		log.Fatalf("committed today: %v", err)
	}
	fmt.Printf("committed today: %d / %d (remaining %d)\n", committed, quota.Limit(), quota.Remaining(committed))
}
