package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gatecheck/config"
	"gatecheck/db"
	"gatecheck/message"
	"gatecheck/service"
	observability "gatecheck/trace"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp := observability.ConfigureTraceProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	conn, err := db.NewDBConn(cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	conn.MigrateSchema()

	redisClient := message.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	svc := service.New(cfg, redisClient, conn)

	if err := svc.Run(ctx); err != nil {
		log.FromContext(ctx).WithError(err).Error("Service stopped with error")
		os.Exit(1)
	}
}
