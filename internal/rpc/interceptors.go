package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"authgate/internal/metrics"
	"authgate/internal/requestid"
	"authgate/pkg/apierror"
)

const (
	outcomeOK       = "ok"
	outcomeCanceled = "canceled"
)

// NewGRPCServer builds a server with tracing, logging, metrics and panic
// recovery installed. rec may be nil.
func NewGRPCServer(rec metrics.Recorder, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryLoggingInterceptor(rec),
			UnaryRecoveryInterceptor(),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// UnaryRecoveryInterceptor turns a handler panic into InternalError.
func UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				slog.ErrorContext(ctx, "panic recovered",
					"method", info.FullMethod,
					"error", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()),
				)
				resp = nil
				err = apierror.Internal(fmt.Errorf("panic in %s: %v", info.FullMethod, recovered))
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor logs every call with its message pattern and
// outcome kind, and normalizes untyped errors to InternalError.
func UnaryLoggingInterceptor(rec metrics.Recorder) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()

		pattern := incomingValue(ctx, PatternHeader)
		if pattern == "" {
			if p, ok := PatternForMethod(info.FullMethod); ok {
				pattern = string(p)
			}
		}
		ctx = requestid.WithContext(ctx, incomingValue(ctx, RequestIDHeader))

		resp, err := handler(ctx, req)

		duration := time.Since(started)
		outcome := outcomeOK
		attrs := []any{
			"method", info.FullMethod,
			"pattern", pattern,
			"duration_ms", duration.Milliseconds(),
		}

		if err != nil {
			apiErr := apierror.From(err)
			err = apiErr
			outcome = string(apiErr.Kind)
			attrs = append(attrs, "kind", apiErr.Kind, "status_code", apiErr.HTTPStatus)
			if cause := errors.Unwrap(apiErr); cause != nil {
				attrs = append(attrs, "cause", cause.Error())
			}
		}
		attrs = append(attrs, "outcome", outcome)

		switch {
		case outcome == string(apierror.KindInternalError):
			slog.ErrorContext(ctx, "rpc", attrs...)
		case outcome != outcomeOK:
			slog.WarnContext(ctx, "rpc", attrs...)
		default:
			slog.InfoContext(ctx, "rpc", attrs...)
		}

		if rec != nil {
			rec.RecordRPC(metrics.SideServer, pattern, outcome, duration)
		}
		return resp, err
	}
}
