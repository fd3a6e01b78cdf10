package grpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/presentation/grpc/interceptor"
)

// LedgerServiceName ヘルスチェックで公開する台帳サービス名
const LedgerServiceName = "flowers.ledger.v1.Ledger"

// Probe 依存先の疎通確認
type Probe func(ctx context.Context) error

// Server 運用向けgRPCサーバー（ヘルスチェックとリフレクション）
type Server struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	port     int
	probes   map[string]Probe
	logger   *otelinfra.Logger
}

// NewServer 新しいgRPCサーバーを作成
func NewServer(cfg *config.Config, logger *otelinfra.Logger, probes map[string]Probe) (*Server, error) {
	address := fmt.Sprintf(":%d", cfg.Server.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return NewServerWithListener(cfg, logger, probes, listener, cfg.Server.GRPCPort), nil
}

// NewServerWithListener リスナーを指定してgRPCサーバーを作成（テスト用）
func NewServerWithListener(cfg *config.Config, logger *otelinfra.Logger, probes map[string]Probe, listener net.Listener, port int) *Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(interceptor.APIKeyInterceptor(&cfg.AdminAPI, logger)),
		grpc.StreamInterceptor(interceptor.APIKeyStreamInterceptor(&cfg.AdminAPI, logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAge:      30 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(opts...)

	// 最初の疎通確認までは停止中として扱う
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(LedgerServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// リフレクションは開発環境のみ
	if cfg.Environment == "development" {
		reflection.Register(grpcServer)
	}

	if probes == nil {
		probes = map[string]Probe{}
	}

	return &Server{
		server:   grpcServer,
		health:   healthServer,
		listener: listener,
		port:     port,
		probes:   probes,
		logger:   logger,
	}
}

// Check 全ての依存先を確認し、ヘルス状態を更新する
func (s *Server) Check(ctx context.Context) error {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := s.probes[name](ctx); err != nil {
			s.logger.Warn(ctx, "Health probe failed", map[string]interface{}{
				"probe": name,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(errs) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(LedgerServiceName, status)

	return errors.Join(errs...)
}

// Start サーバーを起動
func (s *Server) Start() error {
	log.Printf("gRPC server starting on port %d", s.port)
	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop サーバーを停止
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Stopping gRPC server...")

	// 停止中はヘルスチェックに失敗を返す
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Println("gRPC server stopped")
		return nil
	case <-ctx.Done():
		// タイムアウトした場合は強制停止
		log.Println("gRPC server shutdown timeout, forcing stop...")
		s.server.Stop()
		return ctx.Err()
	}
}

// Port サーバーのポート番号を返す
func (s *Server) Port() int {
	return s.port
}
