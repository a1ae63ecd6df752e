package message

import (
	"gatecheck/db"
	"gatecheck/message/command"
	"gatecheck/message/event"
	"gatecheck/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

func NewWatermillRouter(
	pgSubscriber message.Subscriber,
	redisPublisher message.Publisher,
	commandProcessorConfig cqrs.CommandProcessorConfig,
	eventProcessorConfig cqrs.EventProcessorConfig,
	commandHandler command.Handler,
	eventHandler event.Handler,
	batchReadModel db.CheckInBatchReadModel,
	watermillLogger watermill.LoggerAdapter,
) *message.Router {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		panic(err)
	}

	useMiddlewares(router, redisPublisher, watermillLogger)

	_, err = outbox.NewForwarder(pgSubscriber, redisPublisher, watermillLogger, router)
	if err != nil {
		panic(err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		panic(err)
	}

	commandProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		panic(err)
	}

	err = commandProcessor.AddHandlers(
		cqrs.NewCommandHandler(
			"HandleCheckInTicket",
			commandHandler.HandleCheckInTicket,
		),
	)
	if err != nil {
		panic(err)
	}

	err = eventProcessor.AddHandlers(
		cqrs.NewEventHandler(
			"InvalidateStatsOnCheckIn",
			eventHandler.OnTicketCheckedIn,
		),
		cqrs.NewEventHandler(
			"RecordFailedCheckIn",
			eventHandler.OnCheckInFailed,
		),
		cqrs.NewEventHandler(
			"UpdateBatchReadModel",
			batchReadModel.OnBatchItemProcessed,
		),
	)
	if err != nil {
		panic(err)
	}

	return router
}
