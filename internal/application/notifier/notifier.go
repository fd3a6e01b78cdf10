// Package notifier コミット済みの精算結果をイベントとして発行する
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flower-server/internal/domain/event"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// Notifier イベント発行の失敗をログに残し、呼び出し元へは返さない
type Notifier struct {
	publisher event.Publisher
	logger    *otelinfra.Logger
	newID     func() string
	now       func() time.Time
}

// New 新しいNotifierを作成
func New(publisher event.Publisher, logger *otelinfra.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Notify イベントを組み立てて発行する
func (n *Notifier) Notify(ctx context.Context, typ event.Type, aggregateID, userID string, amount int64, attrs map[string]string) {
	if n == nil || n.publisher == nil {
		return
	}
	e := event.Event{
		ID:          n.newID(),
		Type:        typ,
		AggregateID: aggregateID,
		UserID:      userID,
		Amount:      amount,
		Attributes:  attrs,
		OccurredAt:  n.now().UTC(),
	}
	if err := n.publisher.Publish(ctx, e); err != nil {
		n.logger.Warn(ctx, "Failed to publish settlement event", map[string]interface{}{
			"event_type":   string(typ),
			"aggregate_id": aggregateID,
			"error":        err.Error(),
		})
	}
}
