// Package grpc builds the gRPC client connections used to reach backend
// services (the Qdrant vector store) with the service's logging, keepalive,
// and credential conventions applied.
package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ClientConfig describes how to reach a gRPC backend.
type ClientConfig struct {
	Addr      string
	APIKey    string
	TLS       bool
	KeepAlive time.Duration
}

// NewClient creates a lazily connecting client connection. Every unary call
// carries the api-key header when APIKey is set and is logged at debug
// level with its status code and latency.
func NewClient(cfg ClientConfig) (*grpc.ClientConn, error) {
	logger := slog.Default().With("component", "grpc-client", "addr", cfg.Addr)

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(
			apiKeyInterceptor(cfg.APIKey),
			loggingInterceptor(logger),
		),
	}
	if cfg.KeepAlive > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepAlive,
			Timeout:             cfg.KeepAlive / 3,
			PermitWithoutStream: true,
		}))
	}

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating grpc client for %s: %w", cfg.Addr, err)
	}
	return conn, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if key != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc call",
			"method", method,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}
