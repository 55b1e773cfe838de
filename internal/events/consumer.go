package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
)

const (
	// SalesGroup is the consumer group of the sales projection.
	SalesGroup = "sales_projection"

	// DefaultBatchSize is the max messages read per batch.
	DefaultBatchSize = 100

	// DefaultBlockTimeout is how long XREADGROUP blocks waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimInterval is how often pending messages are scanned.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before a pending message is reclaimed.
	DefaultClaimIdle = 30 * time.Second

	// deadLetterMaxLen caps the dead-letter stream.
	deadLetterMaxLen = 10000
)

// SalesStore applies sales idempotently and reports how many were new.
type SalesStore interface {
	RecordSales(ctx context.Context, sales []*model.Sale) (int, error)
}

// Consumer reads purchase.settled events from the stream through a consumer
// group and projects them into daily sales. Messages are acknowledged only
// after the store commits; unacknowledged ones are reclaimed after
// DefaultClaimIdle.
type Consumer struct {
	redis         *redis.Client
	stream        string
	store         SalesStore
	logger        *slog.Logger
	metrics       metrics.Recorder
	consumerID    string
	batchSize     int
	blockTimeout  time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewConsumer creates a sales projection consumer. An empty stream uses
// DefaultStream.
func NewConsumer(client *redis.Client, stream string, store SalesStore, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Consumer {
	if stream == "" {
		stream = DefaultStream
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Consumer{
		redis:         client,
		stream:        stream,
		store:         store,
		logger:        logger.With("component", "events.consumer", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		blockTimeout:  DefaultBlockTimeout,
		claimInterval: DefaultClaimInterval,
		claimIdle:     DefaultClaimIdle,
		claimStartID:  "0-0",
	}
}

// NewConsumerID returns a consumer name unique to this process.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "consumer"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// DeadLetterStream returns the stream that receives poison messages.
func (c *Consumer) DeadLetterStream() string {
	return c.stream + ":dead"
}

// SetBlockTimeout overrides the default blocking timeout.
func (c *Consumer) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.blockTimeout = timeout
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (c *Consumer) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		c.claimIdle = idle
	}
}

// SetClaimInterval overrides the default pending-claim interval.
func (c *Consumer) SetClaimInterval(interval time.Duration) {
	if interval > 0 {
		c.claimInterval = interval
	}
}

// Run consumes until ctx is cancelled or Shutdown is called.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("consumer already started")
	}
	c.started = true
	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	defer close(c.done)

	if err := c.ensureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	c.logger.Info("sales_consumer_started", "stream", c.stream)

	for {
		c.mu.Lock()
		draining := c.draining
		c.mu.Unlock()
		if draining {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("sales_consumer_error", "error", err)
			sleepCtx(ctx, time.Second)
		}
	}
}

// Shutdown stops the loop and waits for the in-flight batch. It matches
// server.ShutdownFunc.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.draining = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		c.logger.Info("sales_consumer_stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("sales_consumer_shutdown_timeout")
		return ctx.Err()
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.stream, SalesGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) processOnce(ctx context.Context) error {
	messages, err := c.claimPending(ctx)
	if err != nil {
		c.logger.Warn("sales_consumer_claim_failed", "error", err)
	}
	if len(messages) == 0 {
		messages, err = c.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	batch := DecodeSales(messages)
	for _, p := range batch.Poison {
		c.deadLetter(ctx, p)
	}
	for range batch.Ignored {
		c.metrics.IncEventConsumed("ignored")
	}
	if err := c.ack(ctx, batch.settledIDs()); err != nil {
		return err
	}

	if len(batch.Sales) == 0 {
		return nil
	}
	recorded, err := c.store.RecordSales(ctx, batch.Sales)
	if err != nil {
		for range batch.Sales {
			c.metrics.IncEventConsumed(metrics.StatusFailed)
		}
		// Left pending; claimPending retries after claimIdle.
		return fmt.Errorf("record sales: %w", err)
	}
	for i := 0; i < recorded; i++ {
		c.metrics.IncEventConsumed("recorded")
	}
	for i := recorded; i < len(batch.Sales); i++ {
		c.metrics.IncEventConsumed("duplicate")
	}
	c.logger.Debug("sales_recorded", "batch_size", len(batch.Sales), "recorded", recorded)

	return c.ack(ctx, batch.SaleIDs)
}

func (c *Consumer) claimPending(ctx context.Context) ([]redis.XMessage, error) {
	if c.claimInterval <= 0 || c.claimIdle <= 0 {
		return nil, nil
	}
	if !c.lastClaim.IsZero() && time.Since(c.lastClaim) < c.claimInterval {
		return nil, nil
	}
	c.lastClaim = time.Now()

	messages, start, err := c.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    SalesGroup,
		Consumer: c.consumerID,
		MinIdle:  c.claimIdle,
		Start:    c.claimStartID,
		Count:    int64(c.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		c.claimStartID = start
	}
	return messages, nil
}

func (c *Consumer) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    SalesGroup,
		Consumer: c.consumerID,
		Streams:  []string{c.stream, ">"},
		Count:    int64(c.batchSize),
		Block:    c.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

func (c *Consumer) deadLetter(ctx context.Context, p Poison) {
	c.logger.Warn("event_dead_lettered",
		"message_id", p.Message.ID,
		"reason", p.Reason,
		"detail", p.Detail,
	)

	err := c.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: c.DeadLetterStream(),
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      p.Message.ID,
			"original_stream":  c.stream,
			"reason":           p.Reason,
			"detail":           p.Detail,
			"payload":          p.Message.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		c.logger.Error("dead_letter_write_failed", "message_id", p.Message.ID, "error", err)
	}
	c.metrics.IncEventConsumed("dead_lettered")
}

func (c *Consumer) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.redis.XAck(ctx, c.stream, SalesGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Poison is a message that can never be applied.
type Poison struct {
	Message redis.XMessage
	Reason  string
	Detail  string
}

// SalesBatch is the decoded form of a read. SaleIDs[i] is the message
// carrying Sales[i].
type SalesBatch struct {
	Sales   []*model.Sale
	SaleIDs []string
	// Ignored holds ids of well-formed events of other types.
	Ignored []string
	Poison  []Poison
}

// settledIDs are messages that need no store write.
func (b SalesBatch) settledIDs() []string {
	ids := append([]string(nil), b.Ignored...)
	for _, p := range b.Poison {
		ids = append(ids, p.Message.ID)
	}
	return ids
}

// DecodeSales splits stream messages into sales, other events and poison.
func DecodeSales(messages []redis.XMessage) SalesBatch {
	var batch SalesBatch

	for _, msg := range messages {
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			batch.Poison = append(batch.Poison, Poison{msg, "invalid_format", "payload field missing or not a string"})
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			batch.Poison = append(batch.Poison, Poison{msg, "unmarshal_error", err.Error()})
			continue
		}
		if event.Type != TypePurchaseSettled {
			batch.Ignored = append(batch.Ignored, msg.ID)
			continue
		}

		var data PurchaseSettled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			batch.Poison = append(batch.Poison, Poison{msg, "unmarshal_error", err.Error()})
			continue
		}
		if event.ID == "" || data.APIID == "" || data.Amount < 0 {
			batch.Poison = append(batch.Poison, Poison{msg, "validation_error", "event id, apiId and a non-negative amount are required"})
			continue
		}

		batch.SaleIDs = append(batch.SaleIDs, msg.ID)
		batch.Sales = append(batch.Sales, &model.Sale{
			EventID:   event.ID,
			ListingID: data.APIID,
			Amount:    data.Amount,
			SettledAt: event.OccurredAt,
		})
	}

	return batch
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
