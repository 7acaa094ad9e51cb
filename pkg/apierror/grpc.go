package apierror

import (
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain identifies taxonomy details attached to gRPC statuses.
const Domain = "authgate"

const (
	metadataStatusCode  = "statusCode"
	metadataError       = "error"
	metadataFieldPrefix = "field_"
)

// GRPCCode maps the kind onto a gRPC status code.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindUserExists:
		return codes.AlreadyExists
	case KindInvalidCredentials,
		KindInvalidOrExpiredRefreshToken,
		KindInvalidTokenType,
		KindAuthenticationRequired:
		return codes.Unauthenticated
	case KindUserNotFound:
		return codes.NotFound
	case KindValidationFailed:
		return codes.InvalidArgument
	case KindRateLimited:
		return codes.ResourceExhausted
	case KindUpstreamTimeout:
		return codes.DeadlineExceeded
	case KindUpstreamUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// GRPCStatus converts the error into a status carrying the
// {statusCode, message, error} triple. grpc-go calls it when a handler
// returns an *APIError.
func (e *APIError) GRPCStatus() *status.Status {
	if e == nil {
		return status.New(codes.OK, "")
	}

	st := status.New(e.Kind.GRPCCode(), e.Message)
	metadata := map[string]string{
		metadataStatusCode: strconv.Itoa(e.HTTPStatus),
		metadataError:      string(e.Kind),
	}
	for field, message := range e.Details {
		metadata[metadataFieldPrefix+field] = message
	}

	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Kind),
		Domain:   Domain,
		Metadata: metadata,
	})
	if err != nil {
		return st
	}
	return detailed
}

// FromStatus rebuilds a typed error from a gRPC error. It returns false when
// the status carries no recognizable taxonomy detail, in which case the
// caller must treat the failure as unknown.
func FromStatus(err error) (*APIError, bool) {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return nil, false
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}

		kind, ok := ParseKind(info.GetReason())
		if !ok {
			return nil, false
		}

		out := WithMessage(kind, st.Message())
		if kind == KindInternalError {
			out.Message = kind.DefaultMessage()
		}
		for key, value := range info.GetMetadata() {
			if field, found := strings.CutPrefix(key, metadataFieldPrefix); found {
				if out.Details == nil {
					out.Details = map[string]string{}
				}
				out.Details[field] = value
			}
		}
		return out, true
	}

	return nil, false
}
