package stream

import (
	"context"
	"fmt"

	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/redis/go-redis/v9"
)

// Producer appends index requests to the stream.
type Producer struct {
	client    *redis.Client
	streamKey string
}

func NewProducer(client *redis.Client, streamKey string) *Producer {
	return &Producer{client: client, streamKey: streamKey}
}

// Enqueue adds req to the stream and returns the message id.
func (p *Producer) Enqueue(ctx context.Context, req *models.IndexRequest) (string, error) {
	values, err := EncodeIndexRequest(req)
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add message to stream: %w", err)
	}
	return id, nil
}
