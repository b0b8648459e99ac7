package usecase

import (
	"context"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 注文イベントの送信先（Kafkaなど）
type EventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

// IdempotencyGuard marks a (buyer, key) checkout as in flight so a concurrent
// duplicate submission is turned away before it reaches the ledger.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, userID int64, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID int64, key string) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

func NewUUIDGenerator() IDGenerator { return uuidGenerator{} }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.OrderEvent) error { return nil }

type noopIdempotencyGuard struct{}

func (noopIdempotencyGuard) Acquire(context.Context, int64, string, time.Duration) (bool, error) {
	return true, nil
}

func (noopIdempotencyGuard) Release(context.Context, int64, string) error { return nil }

func NewNoopIdempotencyGuard() IdempotencyGuard { return noopIdempotencyGuard{} }

func SystemClock() Clock { return systemClock{} }
