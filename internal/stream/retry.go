package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

// Permanent wraps err so RetryWithBackoff dead-letters it at once.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

type RetryHandler struct {
	client        *redis.Client
	deadLetterKey string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewRetryHandler(client *redis.Client, deadLetterKey string) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxRetries:    3,
		baseDelay:     time.Second,
		maxDelay:      30 * time.Second,
	}
}

// deadLetter is the document pushed onto the dead letter list.
type deadLetter struct {
	MessageID string                 `json:"message_id"`
	Fields    map[string]interface{} `json:"fields"`
	Error     string                 `json:"error"`
	Attempts  int                    `json:"attempts"`
	FailedAt  time.Time              `json:"failed_at"`
}

// RetryWithBackoff runs fn until it succeeds, retrying with exponential
// backoff. Once retries are exhausted, or fn fails permanently, the
// message is pushed onto the dead letter list and the last error is
// returned. Cancellation returns the context error and leaves the
// message pending.
func (h *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var err error
	attempt := 0
	for attempt < h.maxRetries {
		attempt++
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			break
		}
		if attempt == h.maxRetries {
			break
		}
		delay := h.backoff(attempt)
		log.Warn().
			Err(err).
			Str("message_id", messageID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Processing failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if dlqErr := h.sendToDeadLetter(ctx, messageID, fields, err, attempt); dlqErr != nil {
		log.Error().Err(dlqErr).Str("message_id", messageID).Msg("Failed to send message to dead letter queue")
	}
	return err
}

func (h *RetryHandler) backoff(attempt int) time.Duration {
	delay := h.baseDelay << (attempt - 1)
	if delay > h.maxDelay || delay <= 0 {
		delay = h.maxDelay
	}
	return delay
}

func (h *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error, attempts int) error {
	doc, err := json.Marshal(deadLetter{
		MessageID: messageID,
		Fields:    fields,
		Error:     cause.Error(),
		Attempts:  attempts,
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}
	if err := h.client.LPush(ctx, h.deadLetterKey, doc).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	log.Warn().
		Str("message_id", messageID).
		Int("attempts", attempts).
		Str("dead_letter_key", h.deadLetterKey).
		Msg("Message moved to dead letter queue")
	return nil
}
