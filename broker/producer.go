package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulseward/pulseward/core"
	"github.com/pulseward/pulseward/resilience"
)

// Producer publishes events to topic partitions. Publish returns only after
// Redis has acknowledged the append, so a caller that acks its input after
// Publish never loses an event.
type Producer struct {
	redis  *core.RedisClient
	cfg    core.BrokerConfig
	retry  resilience.RetryConfig
	logger core.Logger
}

// NewProducer creates a producer using the broker config's retry budget.
func NewProducer(redis *core.RedisClient, cfg core.BrokerConfig, logger core.Logger) *Producer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.PublishAttempts > 0 {
		retry.MaxAttempts = cfg.PublishAttempts
	}
	return &Producer{redis: redis, cfg: cfg, retry: retry, logger: logger}
}

// Publish serializes payload and appends it to the partition selected by
// partitionKey. eventID travels alongside the payload for consumer-side
// dedupe. Transient broker errors are retried with exponential backoff.
func (p *Producer) Publish(ctx context.Context, topic, partitionKey, eventID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return core.NewPipelineError("broker.publish", core.KindValidation, eventID,
			fmt.Sprintf("marshaling payload for %s", topic), err)
	}

	partition := PartitionFor(partitionKey, p.cfg.Partitions)
	stream := StreamKey(p.redis, topic, partition)

	err = resilience.Retry(ctx, p.retry, func(ctx context.Context) error {
		_, addErr := p.redis.XAdd(ctx, stream, p.cfg.MaxLen, map[string]interface{}{
			"payload":  string(data),
			"key":      partitionKey,
			"event_id": eventID,
		})
		return addErr
	})
	if err != nil {
		p.logger.Error("publish failed", map[string]interface{}{
			"topic":     topic,
			"partition": partition,
			"event_id":  eventID,
			"error":     err.Error(),
		})
		return core.NewPipelineError("broker.publish", core.KindConnection, eventID,
			fmt.Sprintf("publishing to %s", topic), err)
	}

	p.logger.Debug("event published", map[string]interface{}{
		"topic":     topic,
		"partition": partition,
		"event_id":  eventID,
	})
	return nil
}
