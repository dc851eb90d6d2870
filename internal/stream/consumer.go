package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/ingest"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Processor indexes one decoded request.
type Processor interface {
	ProcessRequest(ctx context.Context, req *models.IndexRequest) (*index.Summary, error)
}

// Consumer reads index requests from a stream through a consumer group.
// Messages are acknowledged once indexed or dead-lettered; messages left
// pending by a crashed consumer are reclaimed after claimIdle.
type Consumer struct {
	client            *redis.Client
	streamKey         string
	group             string
	name              string
	processor         Processor
	retryHandler      *RetryHandler
	retentionDuration time.Duration

	batchSize       int64
	block           time.Duration
	claimIdle       time.Duration
	claimInterval   time.Duration
	cleanupInterval time.Duration
}

func NewConsumer(
	client *redis.Client,
	streamKey string,
	consumerGroup string,
	consumerName string,
	processor Processor,
	retryHandler *RetryHandler,
	retentionDuration time.Duration,
) *Consumer {
	return &Consumer{
		client:            client,
		streamKey:         streamKey,
		group:             consumerGroup,
		name:              consumerName,
		processor:         processor,
		retryHandler:      retryHandler,
		retentionDuration: retentionDuration,
		batchSize:         10,
		block:             time.Second,
		claimIdle:         time.Minute,
		claimInterval:     30 * time.Second,
		cleanupInterval:   time.Hour,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	// Crash recovery: anything idle in the PEL belongs to a dead consumer.
	if err := c.reclaim(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to reclaim pending messages on startup")
	}
	lastClaim := time.Now()

	if c.retentionDuration > 0 {
		go c.trimLoop(ctx)
	}

	log.Info().
		Str("stream", c.streamKey).
		Str("group", c.group).
		Str("consumer", c.name).
		Msg("Consuming index requests")

	for ctx.Err() == nil {
		if time.Since(lastClaim) > c.claimInterval {
			if err := c.reclaim(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to reclaim pending messages")
			}
			lastClaim = time.Now()
		}

		if err := c.readBatch(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Error reading index stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	return ctx.Err()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// "$" so a fresh group only sees requests enqueued from now on.
	err := c.client.XGroupCreateMkStream(ctx, c.streamKey, c.group, "$").Err()
	if err == nil {
		log.Info().Str("group", c.group).Str("stream", c.streamKey).Msg("Created consumer group")
		return nil
	}
	if strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
}

// reclaim takes over messages idle for longer than claimIdle, page by
// page, and processes them.
func (c *Consumer) reclaim(ctx context.Context) error {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.streamKey,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  c.claimIdle,
			Start:    start,
			Count:    c.batchSize,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("failed to claim pending messages: %w", err)
		}
		if len(msgs) > 0 {
			log.Info().Int("claimed", len(msgs)).Msg("Reclaimed pending index requests")
		}
		c.handleAll(ctx, msgs)
		if next == "0-0" || next == "" || ctx.Err() != nil {
			return nil
		}
		start = next
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.streamKey, ">"},
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}
	for _, s := range streams {
		if s.Stream == c.streamKey {
			c.handleAll(ctx, s.Messages)
		}
	}
	return nil
}

func (c *Consumer) handleAll(ctx context.Context, msgs []redis.XMessage) {
	for i := range msgs {
		if ctx.Err() != nil {
			return
		}
		if err := c.handle(ctx, &msgs[i]); err != nil {
			log.Error().Err(err).Str("message_id", msgs[i].ID).Msg("Failed to handle index request")
		}
	}
}

// handle indexes one message. Undecodable and permanently failing
// requests are acknowledged so they are not redelivered; a cancelled
// request stays pending for the next reclaim.
func (c *Consumer) handle(ctx context.Context, msg *redis.XMessage) error {
	fields := make(map[string]string, len(msg.Values))
	raw := make(map[string]interface{}, len(msg.Values))
	for k, v := range msg.Values {
		raw[k] = v
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}

	req, err := ParseIndexRequest(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		if ackErr := c.ack(ctx, msg.ID); ackErr != nil {
			return ackErr
		}
		return fmt.Errorf("dropped undecodable message: %w", err)
	}

	var summary *index.Summary
	err = c.retryHandler.RetryWithBackoff(ctx, func() error {
		var perr error
		summary, perr = c.processor.ProcessRequest(ctx, req)
		if errors.Is(perr, ingest.ErrInvalidRequest) {
			return Permanent(perr)
		}
		return perr
	}, msg.ID, raw)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return c.ack(ctx, msg.ID)
	}

	log.Info().
		Str("message_id", msg.ID).
		Str("package_id", summary.PackageID).
		Msg("Index request processed")
	return c.ack(ctx, msg.ID)
}

func (c *Consumer) trimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		if err := c.trim(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to trim index stream")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// trim drops stream entries older than the retention window.
func (c *Consumer) trim(ctx context.Context) error {
	cutoff := time.Now().Add(-c.retentionDuration)
	trimmed, err := c.client.XTrimMinID(ctx, c.streamKey, fmt.Sprintf("%d-0", cutoff.UnixMilli())).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if trimmed > 0 {
		log.Debug().
			Int64("trimmed", trimmed).
			Time("cutoff", cutoff).
			Msg("Trimmed index stream")
	}
	return nil
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.streamKey, c.group, id).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", id, err)
	}
	return nil
}
