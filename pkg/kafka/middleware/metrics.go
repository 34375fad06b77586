package kafka_middleware

import (
	"context"
	"noqbot/pkg/kafka"
	"noqbot/pkg/metrics"
	"time"
)

// MetricsProducerMiddleware records publish counts and latency per event type.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.RecordEventPublish(msg.GetEventType(), time.Since(start), err)
		return err
	}
}
