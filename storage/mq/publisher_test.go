package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestHeaderCarrierInjectsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := amqp.Table{}
	propagation.TraceContext{}.Inject(ctx, headerCarrier(headers))

	assert.NotEmpty(t, headerCarrier(headers).Get("traceparent"))
	assert.Contains(t, headerCarrier(headers).Keys(), "traceparent")
	assert.Empty(t, headerCarrier(headers).Get("missing"))
}

func TestPublishWithoutConnection(t *testing.T) {
	err := PublishMessage(context.Background(), "scheduler.reminders", "compliance.reminder.slack", "1", map[string]string{"a": "b"})
	assert.Error(t, err)
}
