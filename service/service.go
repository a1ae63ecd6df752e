package service

import (
	"context"

	"gatecheck/checkin"
	"gatecheck/config"
	"gatecheck/db"
	"gatecheck/gate"
	gatecheckHttp "gatecheck/http"
	"gatecheck/manifest"
	"gatecheck/message"
	"gatecheck/message/command"
	"gatecheck/message/event"
	"gatecheck/message/outbox"
	"gatecheck/sign"
	"gatecheck/validation"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	watermillMessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Service struct {
	watermillRouter *watermillMessage.Router
	echoRouter      *echo.Echo
	addr            string
}

func New(
	cfg config.Config,
	redisClient *redis.Client,
	conn db.DB,
) Service {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := message.NewRedisPublisher(redisClient, watermillLogger)

	eventBus := event.NewBus(redisPublisher)
	commandBus := command.NewCommandBus(redisPublisher)

	ticketRepo := db.NewTicketRepository(&conn)
	eventRepo := db.NewEventRepository(&conn)
	secretRepo := db.NewSecretRepository(&conn)
	permissionRepo := db.NewPermissionRepository(&conn)
	pendingRepo := db.NewPendingCheckInRepository(&conn)
	batchReadModel := db.NewCheckInBatchReadModel(&conn)

	signer := sign.NewSigner(secretRepo)
	tokens := sign.NewTokenCodec(signer, cfg.ScanTokenTTL)

	permissionGate := gate.NewGate(eventRepo, permissionRepo)

	markers := checkin.NewMarker(redisClient, cfg.MarkerTTL)
	statsCache := checkin.NewStatsCache(redisClient, cfg.StatsCacheTTL)
	coordinator := checkin.NewCoordinator(
		ticketRepo,
		permissionGate,
		markers,
		statsCache,
		uint64(cfg.CheckInMaxRetries),
		cfg.CheckInCallTimeout,
	)

	validator := validation.NewService(tokens, ticketRepo, permissionGate)
	manifests := manifest.NewBuilder(ticketRepo, signer, redisClient, cfg.ManifestCacheTTL, cfg.ManifestDeviceTTL)

	eventsHandler := event.NewHandler(pendingRepo, statsCache)
	commandsHandler := command.NewHandler(coordinator, eventBus, markers)

	eventProcessorConfig := event.NewProcessorConfig(redisClient, watermillLogger)
	commandProcessorConfig := command.NewCommandProcessorConfig(redisClient, watermillLogger)

	pgSubscriber := outbox.SubscribeForPGMessages(conn.Conn, watermillLogger)
	watermillRouter := message.NewWatermillRouter(
		pgSubscriber,
		redisPublisher,
		commandProcessorConfig,
		eventProcessorConfig,
		commandsHandler,
		eventsHandler,
		batchReadModel,
		watermillLogger,
	)

	echoRouter := gatecheckHttp.NewHttpRouter(
		commandBus,
		validator,
		coordinator,
		ticketRepo,
		manifests,
		permissionGate,
		tokens,
		markers,
		statsCache,
		batchReadModel,
		pendingRepo,
		cfg.JWTSecret,
	)

	return Service{
		watermillRouter: watermillRouter,
		echoRouter:      echoRouter,
		addr:            ":" + cfg.Port,
	}
}

func (s Service) Run(ctx context.Context) error {
	errgrp, ctx := errgroup.WithContext(ctx)

	errgrp.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	errgrp.Go(func() error {
		// The HTTP surface only comes up once the message router is
		// consuming, so a healthy service is a complete one.
		<-s.watermillRouter.Running()

		return s.echoRouter.Start(s.addr)
	})

	errgrp.Go(func() error {
		<-ctx.Done()
		return s.echoRouter.Shutdown(context.Background())
	})

	return errgrp.Wait()
}
