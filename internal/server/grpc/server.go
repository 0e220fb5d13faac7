package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/erpsync/internal/config"
)

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, NewHealth),
	fx.Invoke(Run),
)

// NewHealth registers the standard health service. The overall status and
// the service's own name report SERVING while the process runs.
func NewHealth(server *grpc.Server, cfg config.Config) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	setServing(hs, cfg.Observability.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// NewServer builds a gRPC server whose interceptors log each call with its
// status code and turn handler panics into codes.Internal.
func NewServer(logger *zap.Logger) *grpc.Server {
	logger = logger.Named("grpc")

	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = recovered(logger, info.FullMethod, r)
			}
			logCall(logger, info.FullMethod, start, err)
		}()
		return handler(ctx, req)
	}

	stream := func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = recovered(logger, info.FullMethod, r)
			}
			logCall(logger, info.FullMethod, start, err)
		}()
		return handler(srv, ss)
	}

	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary),
		grpc.ChainStreamInterceptor(stream),
	)
}

func recovered(logger *zap.Logger, method string, r any) error {
	logger.Error("grpc handler panicked", zap.String("method", method), zap.Any("panic", r), zap.Stack("stack"))
	return status.Error(codes.Internal, "internal error")
}

// Health probes arrive every few seconds; they only show up at debug level.
func logCall(logger *zap.Logger, method string, start time.Time, err error) {
	code := status.Code(err)
	level := zapcore.InfoLevel
	switch {
	case code == codes.Internal || code == codes.Unknown || code == codes.DataLoss:
		level = zapcore.ErrorLevel
	case err != nil:
		level = zapcore.WarnLevel
	case strings.HasPrefix(method, "/grpc.health.v1.Health/"):
		level = zapcore.DebugLevel
	}

	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := logger.Check(level, "grpc call finished"); ce != nil {
		ce.Write(fields...)
	}
}

func setServing(hs *health.Server, service string, st healthpb.HealthCheckResponse_ServingStatus) {
	hs.SetServingStatus("", st)
	if service != "" {
		hs.SetServingStatus(service, st)
	}
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, hs *health.Server, logger *zap.Logger) {
	if !cfg.GRPC.Enabled {
		logger.Info("gRPC server disabled")
		return
	}
	addr := net.JoinHostPort(cfg.GRPC.Host, fmt.Sprint(cfg.GRPC.Port))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			setServing(hs, cfg.Observability.ServiceName, healthpb.HealthCheckResponse_SERVING)
			logger.Info("starting gRPC server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error("grpc server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			// Shutdown flips every registered service to NOT_SERVING before draining.
			hs.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
