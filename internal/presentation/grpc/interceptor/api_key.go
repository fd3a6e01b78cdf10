package interceptor

import (
	"context"
	"crypto/subtle"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"flower-server/internal/infrastructure/config"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
)

// healthServicePrefix 認証なしで呼び出せるヘルスチェックサービス
const healthServicePrefix = "/grpc.health.v1.Health/"

// APIKeyInterceptor ヘルスチェック以外のunary呼び出しに管理APIキーを要求する
func APIKeyInterceptor(cfg *config.AdminAPIConfig, logger *otelinfra.Logger) grpc.UnaryServerInterceptor {
	allowed := parseAllowList(cfg.AllowedIPs)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := authorize(ctx, cfg, allowed, info.FullMethod, logger); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// APIKeyStreamInterceptor ストリーム呼び出し（リフレクション等）用のAPIキー認証
func APIKeyStreamInterceptor(cfg *config.AdminAPIConfig, logger *otelinfra.Logger) grpc.StreamServerInterceptor {
	allowed := parseAllowList(cfg.AllowedIPs)
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := authorize(ss.Context(), cfg, allowed, info.FullMethod, logger); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func authorize(ctx context.Context, cfg *config.AdminAPIConfig, allowed []*net.IPNet, method string, logger *otelinfra.Logger) error {
	if strings.HasPrefix(method, healthServicePrefix) {
		return nil
	}

	if !cfg.Enabled {
		logger.Warn(ctx, "Admin API is disabled", map[string]interface{}{"method": method})
		return status.Error(codes.PermissionDenied, "admin API is disabled")
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logger.Warn(ctx, "Missing metadata", map[string]interface{}{"method": method})
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKeys := md.Get("x-api-key")
	if len(apiKeys) == 0 {
		logger.Warn(ctx, "Missing X-API-Key metadata", map[string]interface{}{"method": method})
		return status.Error(codes.Unauthenticated, "missing X-API-Key metadata")
	}
	if cfg.APIKey == "" || subtle.ConstantTimeCompare([]byte(apiKeys[0]), []byte(cfg.APIKey)) != 1 {
		logger.Warn(ctx, "Invalid API key", map[string]interface{}{"method": method})
		return status.Error(codes.Unauthenticated, "invalid API key")
	}

	if len(allowed) > 0 {
		ip := clientIP(ctx, md)
		if !isIPAllowed(ip, allowed) {
			logger.Warn(ctx, "IP address not allowed", map[string]interface{}{
				"ip":     ip,
				"method": method,
			})
			return status.Error(codes.PermissionDenied, "IP address not allowed")
		}
	}

	return nil
}

// clientIP 転送ヘッダー、なければ接続元アドレスからIPを取得
func clientIP(ctx context.Context, md metadata.MD) string {
	if forwardedFor := md.Get("x-forwarded-for"); len(forwardedFor) > 0 {
		return strings.TrimSpace(strings.Split(forwardedFor[0], ",")[0])
	}
	if realIP := md.Get("x-real-ip"); len(realIP) > 0 {
		return realIP[0]
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		host, _, err := net.SplitHostPort(p.Addr.String())
		if err == nil {
			return host
		}
		return p.Addr.String()
	}
	return ""
}

// parseAllowList 単一IPとCIDR表記の両方を受け付ける
func parseAllowList(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				if ip.To4() != nil {
					entry += "/32"
				} else {
					entry += "/128"
				}
			}
		}
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
		}
	}
	return nets
}

func isIPAllowed(ip string, allowed []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range allowed {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
