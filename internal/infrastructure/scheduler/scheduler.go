// Package scheduler 定期ジョブの実行
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// Job 定期実行されるジョブ
type Job func(ctx context.Context) error

// Scheduler cronでジョブを実行する
// 前回の実行が終わっていない場合は次の起動をスキップする
type Scheduler struct {
	cron    *cron.Cron
	logger  *otelinfra.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New 新しいSchedulerを作成
// timeoutは1回の実行に与える上限時間
func New(logger *otelinfra.Logger, timeout time.Duration) *Scheduler {
	logger = logger.WithComponent("scheduler")
	cronLogger := &cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register ジョブを登録する
func (s *Scheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info(s.ctx, "job scheduled", map[string]interface{}{
		"job":      name,
		"schedule": spec,
	})
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error(ctx, "job failed", err, map[string]interface{}{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return
	}
	s.logger.Debug(ctx, "job finished", map[string]interface{}{
		"job":         name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Start スケジューラーを開始する
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 新しい起動を止め、実行中のジョブの終了を待つ
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// cronLogger cron内部のログをLoggerへ流す
type cronLogger struct {
	logger *otelinfra.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), msg, toFields(keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), msg, err, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = fmt.Sprint(keysAndValues[i+1])
	}
	return fields
}
