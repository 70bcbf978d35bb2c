package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pulseward/pulseward/core"
)

// Handler processes one event payload. Returning an error leaves the entry
// unacknowledged so the redelivery sweep picks it up again.
type Handler func(ctx context.Context, payload []byte) error

// Consumer reads one topic for a consumer group, one goroutine per
// partition. Within a partition processing is strictly sequential, which
// preserves per-device ordering. Entries are acknowledged only after the
// handler (including its downstream publishes) succeeds.
type Consumer struct {
	redis   *core.RedisClient
	cfg     core.BrokerConfig
	topic   string
	group   string
	name    string
	handler Handler
	logger  core.Logger

	mu          sync.Mutex
	started     bool
	fetchCancel context.CancelFunc
	drainCancel context.CancelFunc
	wg          sync.WaitGroup
}

// NewConsumer creates a consumer. name identifies this instance within the
// group and must be stable enough for pending-entry ownership.
func NewConsumer(redisClient *core.RedisClient, cfg core.BrokerConfig, topic, group, name string, handler Handler, logger core.Logger) *Consumer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Consumer{
		redis:   redisClient,
		cfg:     cfg,
		topic:   topic,
		group:   group,
		name:    name,
		handler: handler,
		logger:  logger,
	}
}

// Start creates the consumer group on every partition stream and launches
// the partition loops. It does not block.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("consumer for %s already started", c.topic)
	}

	partitions := c.cfg.Partitions
	if partitions < 1 {
		partitions = 1
	}
	for p := 0; p < partitions; p++ {
		if err := c.redis.EnsureGroup(ctx, StreamKey(c.redis, c.topic, p), c.group); err != nil {
			return err
		}
	}

	fetchCtx, fetchCancel := context.WithCancel(ctx)
	drainCtx, drainCancel := context.WithCancel(context.Background())
	c.fetchCancel = fetchCancel
	c.drainCancel = drainCancel
	c.started = true

	for p := 0; p < partitions; p++ {
		c.wg.Add(1)
		go c.run(fetchCtx, drainCtx, p)
	}

	c.logger.Info("consumer started", map[string]interface{}{
		"topic":      c.topic,
		"group":      c.group,
		"partitions": partitions,
	})
	return nil
}

// Stop halts fetching and waits up to timeout for in-flight handlers to
// drain. Handlers still running past the deadline have their context
// cancelled and ErrShuttingDown is returned.
func (c *Consumer) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	fetchCancel := c.fetchCancel
	drainCancel := c.drainCancel
	c.mu.Unlock()

	fetchCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		drainCancel()
		c.logger.Info("consumer drained", map[string]interface{}{"topic": c.topic})
		return nil
	case <-time.After(timeout):
		drainCancel()
		c.logger.Error("consumer drain timed out", map[string]interface{}{
			"topic":   c.topic,
			"timeout": timeout.String(),
		})
		return fmt.Errorf("%w: drain of %s exceeded %s", core.ErrShuttingDown, c.topic, timeout)
	}
}

func (c *Consumer) run(fetchCtx, drainCtx context.Context, partition int) {
	defer c.wg.Done()
	stream := StreamKey(c.redis, c.topic, partition)
	claimCursor := "0-0"

	for {
		if fetchCtx.Err() != nil {
			return
		}

		claimCursor = c.claimSweep(fetchCtx, drainCtx, stream, claimCursor)

		msg, err := c.redis.ReadGroup(fetchCtx, stream, c.group, c.name, c.cfg.BlockTimeout)
		if err != nil {
			if fetchCtx.Err() != nil {
				return
			}
			c.logger.Error("consumer read failed", map[string]interface{}{
				"stream": stream,
				"error":  err.Error(),
			})
			select {
			case <-fetchCtx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}
		c.process(drainCtx, stream, *msg, 1)
	}
}

// claimSweep takes over pending entries idle past ClaimMinIdle, dropping
// those that exhausted their delivery budget.
func (c *Consumer) claimSweep(fetchCtx, drainCtx context.Context, stream, cursor string) string {
	msgs, next, err := c.redis.AutoClaim(fetchCtx, stream, c.group, c.name, c.cfg.ClaimMinIdle, cursor, 16)
	if err != nil {
		if fetchCtx.Err() == nil {
			c.logger.Warn("redelivery sweep failed", map[string]interface{}{
				"stream": stream,
				"error":  err.Error(),
			})
		}
		return cursor
	}
	for _, msg := range msgs {
		if fetchCtx.Err() != nil {
			return next
		}
		deliveries, err := c.redis.PendingDeliveries(fetchCtx, stream, c.group, msg.ID)
		if err != nil {
			deliveries = 1
		}
		c.process(drainCtx, stream, msg, deliveries)
	}
	return next
}

func (c *Consumer) process(ctx context.Context, stream string, msg redis.XMessage, deliveries int64) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("handler panic, leaving entry for redelivery", map[string]interface{}{
				"stream": stream,
				"id":     msg.ID,
				"panic":  rec,
			})
		}
	}()

	eventID, _ := msg.Values["event_id"].(string)

	if deliveries > c.cfg.MaxDeliveries && c.cfg.MaxDeliveries > 0 {
		c.logger.Error("dropping poison entry", map[string]interface{}{
			"stream":     stream,
			"id":         msg.ID,
			"event_id":   eventID,
			"deliveries": deliveries,
		})
		c.ack(ctx, stream, msg.ID)
		return
	}

	payload, ok := msg.Values["payload"].(string)
	if !ok || payload == "" {
		c.logger.Error("dropping entry without payload", map[string]interface{}{
			"stream": stream,
			"id":     msg.ID,
		})
		c.ack(ctx, stream, msg.ID)
		return
	}

	if c.cfg.DedupeEnabled && eventID != "" {
		if seen, err := c.alreadyProcessed(ctx, eventID); err == nil && seen {
			c.logger.Debug("skipping duplicate event", map[string]interface{}{
				"event_id": eventID,
			})
			c.ack(ctx, stream, msg.ID)
			return
		}
	}

	if err := c.handler(ctx, []byte(payload)); err != nil {
		c.logger.Warn("handler failed, entry will be redelivered", map[string]interface{}{
			"stream":     stream,
			"id":         msg.ID,
			"event_id":   eventID,
			"deliveries": deliveries,
			"error":      err.Error(),
		})
		return
	}

	if c.cfg.DedupeEnabled && eventID != "" {
		c.markProcessed(ctx, eventID)
	}
	c.ack(ctx, stream, msg.ID)
}

func (c *Consumer) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	_, err := c.redis.Get(ctx, c.dedupeKey(eventID))
	if err == nil {
		return true, nil
	}
	if core.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Consumer) markProcessed(ctx context.Context, eventID string) {
	ttl := c.cfg.DedupeTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if _, err := c.redis.SetNX(ctx, c.dedupeKey(eventID), "1", ttl); err != nil {
		c.logger.Warn("dedupe marker write failed", map[string]interface{}{
			"event_id": eventID,
			"error":    err.Error(),
		})
	}
}

func (c *Consumer) dedupeKey(eventID string) string {
	return c.redis.Key("processed", c.group, eventID)
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.redis.Ack(ctx, stream, c.group, id); err != nil {
		c.logger.Warn("ack failed, entry may be redelivered", map[string]interface{}{
			"stream": stream,
			"id":     id,
			"error":  err.Error(),
		})
	}
}
