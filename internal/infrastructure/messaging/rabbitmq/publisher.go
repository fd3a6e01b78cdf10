// Package rabbitmq 精算イベントをRabbitMQのトピックエクスチェンジへ配信する
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"flower-server/internal/domain/event"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

const dialTimeout = 10 * time.Second

// channel 発行に使うAMQPチャネルの操作
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher RabbitMQへイベントを発行するPublisher
type EventPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
	logger   *otelinfra.Logger
}

// NewEventPublisher 接続してエクスチェンジを宣言したPublisherを作成
func NewEventPublisher(amqpURL, exchange string, logger *otelinfra.Logger) (*EventPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	reopen := func() (channel, error) { return conn.Channel() }
	ch, err := reopen()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := newEventPublisher(ch, reopen, exchange, logger)
	p.conn = conn
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func newEventPublisher(ch channel, reopen func() (channel, error), exchange string, logger *otelinfra.Logger) *EventPublisher {
	return &EventPublisher{
		ch:       ch,
		reopen:   reopen,
		exchange: exchange,
		logger:   logger.WithComponent("rabbitmq_publisher"),
	}
}

func (p *EventPublisher) declare() error {
	if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

// Publish イベントを種別をルーティングキーとして発行する
// 失敗時はチャネルを開き直して1回だけ再送する
func (p *EventPublisher) Publish(ctx context.Context, e event.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, msg)
	if err == nil {
		return nil
	}

	p.logger.Warn(ctx, "publish failed; reopening channel", map[string]interface{}{
		"exchange":    p.exchange,
		"routing_key": string(e.Type),
		"error":       err.Error(),
	})
	if p.reopen == nil {
		return err
	}
	ch, chErr := p.reopen()
	if chErr != nil {
		return errors.Join(err, chErr)
	}
	p.ch = ch
	if exErr := p.declare(); exErr != nil {
		return errors.Join(err, exErr)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, msg)
}

// Close チャネルと接続を閉じる
func (p *EventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// FallbackPublisher RabbitMQが使えない場合にイベントをログへ出力するだけのPublisher
type FallbackPublisher struct {
	logger *otelinfra.Logger
}

// NewFallbackPublisher 新しいFallbackPublisherを作成
func NewFallbackPublisher(logger *otelinfra.Logger) *FallbackPublisher {
	return &FallbackPublisher{logger: logger.WithComponent("rabbitmq_publisher")}
}

// Publish イベントをログに記録する
func (p *FallbackPublisher) Publish(ctx context.Context, e event.Event) error {
	p.logger.Info(ctx, "publish skipped", map[string]interface{}{
		"mode":         "fallback",
		"event_id":     e.ID,
		"event_type":   string(e.Type),
		"aggregate_id": e.AggregateID,
	})
	return nil
}

// Close 何もしない
func (p *FallbackPublisher) Close() {}

// sanitizeAMQPURL 引用符や余分な文字を取り除き、スキームを検証する
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
