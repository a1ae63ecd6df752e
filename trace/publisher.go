package observability

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TracingPublisherDecorator injects the current trace context into message
// metadata so consumers can continue the span across the broker.
type TracingPublisherDecorator struct {
	Publisher message.Publisher
}

func (d TracingPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		otel.GetTextMapPropagator().Inject(msg.Context(), propagation.MapCarrier(msg.Metadata))
	}
	return d.Publisher.Publish(topic, messages...)
}

func (d TracingPublisherDecorator) Close() error {
	return d.Publisher.Close()
}
