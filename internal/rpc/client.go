package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"authgate/internal/metrics"
	"authgate/internal/model"
	"authgate/internal/requestid"
	"authgate/pkg/apierror"
)

const DefaultCallTimeout = 5 * time.Second

// Client sends internal messages to the authentication service. Every
// returned error is an *apierror.APIError; kinds that did not come from the
// taxonomy are reported as InternalError.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	metrics metrics.Recorder
}

// NewClient wraps conn. timeout bounds each call; zero selects
// DefaultCallTimeout. rec may be nil.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration, rec metrics.Recorder) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{conn: conn, timeout: timeout, metrics: rec}
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	var out model.AuthResult
	err := c.invoke(ctx, PatternRegister, &req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	var out model.AuthResult
	err := c.invoke(ctx, PatternLogin, &req, &out)
	return out, err
}

func (c *Client) Refresh(ctx context.Context, req model.RefreshRequest) (model.TokenPair, error) {
	var out model.TokenPair
	err := c.invoke(ctx, PatternRefresh, &req, &out)
	return out, err
}

func (c *Client) FindAll(ctx context.Context) (model.UserList, error) {
	var out model.UserList
	err := c.invoke(ctx, PatternFindAll, &model.FindAllRequest{}, &out)
	return out, err
}

func (c *Client) FindByID(ctx context.Context, req model.FindByIDRequest) (model.PublicUser, error) {
	var out model.PublicUser
	err := c.invoke(ctx, PatternFindByID, &req, &out)
	return out, err
}

func (c *Client) invoke(ctx context.Context, pattern Pattern, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pairs := []string{PatternHeader, string(pattern)}
	if id := requestid.FromContext(ctx); id != "" {
		pairs = append(pairs, RequestIDHeader, id)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, pairs...)

	started := time.Now()
	err := c.conn.Invoke(ctx, pattern.FullMethod(), in, out, grpc.CallContentSubtype(CodecName))
	outcome := outcomeOK
	if err != nil {
		apiErr := translate(ctx, err)
		outcome = string(apiErr.Kind)
		if callerCanceled(err) {
			outcome = outcomeCanceled
		}
		err = apiErr
	}

	if c.metrics != nil {
		c.metrics.RecordRPC(metrics.SideClient, string(pattern), outcome, time.Since(started))
	}
	return err
}

// translate maps a transport error onto the taxonomy. Only boundary kinds
// are trusted. Deadline and availability failures become upstream kinds and
// everything else is InternalError. A call the caller abandoned is still
// InternalError but is not logged as a failure.
func translate(ctx context.Context, err error) *apierror.APIError {
	if apiErr, ok := apierror.FromStatus(err); ok {
		return apiErr
	}

	code := status.Code(err)
	switch {
	case code == codes.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "auth service call timed out", "error", err)
		return apierror.Wrap(apierror.KindUpstreamTimeout, err)
	case code == codes.Unavailable:
		slog.WarnContext(ctx, "auth service unavailable", "error", err)
		return apierror.Wrap(apierror.KindUpstreamUnavailable, err)
	case callerCanceled(err):
		slog.DebugContext(ctx, "auth service call canceled by caller", "error", err)
		return apierror.Internal(err)
	default:
		slog.ErrorContext(ctx, "unrecognized auth service error", "code", code.String(), "error", err)
		return apierror.Internal(err)
	}
}

func callerCanceled(err error) bool {
	return status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled)
}
