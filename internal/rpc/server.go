package rpc

import (
	"context"

	"google.golang.org/grpc"

	"authgate/internal/model"
	"authgate/pkg/apierror"
)

// AuthServer is the server API of authgate.v1.AuthService.
type AuthServer interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error)
	Refresh(ctx context.Context, req *model.RefreshRequest) (*model.TokenPair, error)
	FindAll(ctx context.Context, req *model.FindAllRequest) (*model.UserList, error)
	FindByID(ctx context.Context, req *model.FindByIDRequest) (*model.PublicUser, error)
}

func unaryMethod[Req, Resp any](p Pattern, call func(AuthServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: p.Method(),
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, apierror.Validation(map[string]string{"body": "malformed message payload"})
			}
			if interceptor == nil {
				return call(srv.(AuthServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: p.FullMethod()}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes authgate.v1.AuthService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(PatternRegister, AuthServer.Register),
		unaryMethod(PatternLogin, AuthServer.Login),
		unaryMethod(PatternRefresh, AuthServer.Refresh),
		unaryMethod(PatternFindAll, AuthServer.FindAll),
		unaryMethod(PatternFindByID, AuthServer.FindByID),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authgate/v1/auth",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type Authenticator interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error)
	Refresh(ctx context.Context, req model.RefreshRequest) (model.TokenPair, error)
}

type Directory interface {
	FindAll(ctx context.Context) (model.UserList, error)
	FindByID(ctx context.Context, req model.FindByIDRequest) (model.PublicUser, error)
}

// Server binds the message patterns to the authentication and directory
// services. Once a call is accepted it runs to completion even if the caller
// gives up, and every failure leaves as a taxonomy error.
type Server struct {
	auth  Authenticator
	users Directory
}

var _ AuthServer = (*Server)(nil)

func NewServer(auth Authenticator, users Directory) *Server {
	return &Server{auth: auth, users: users}
}

func (s *Server) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error) {
	result, err := s.auth.Register(context.WithoutCancel(ctx), *req)
	if err != nil {
		return nil, apierror.From(err)
	}
	return &result, nil
}

func (s *Server) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error) {
	result, err := s.auth.Login(context.WithoutCancel(ctx), *req)
	if err != nil {
		return nil, apierror.From(err)
	}
	return &result, nil
}

func (s *Server) Refresh(ctx context.Context, req *model.RefreshRequest) (*model.TokenPair, error) {
	pair, err := s.auth.Refresh(context.WithoutCancel(ctx), *req)
	if err != nil {
		return nil, apierror.From(err)
	}
	return &pair, nil
}

func (s *Server) FindAll(ctx context.Context, _ *model.FindAllRequest) (*model.UserList, error) {
	list, err := s.users.FindAll(context.WithoutCancel(ctx))
	if err != nil {
		return nil, apierror.From(err)
	}
	return &list, nil
}

func (s *Server) FindByID(ctx context.Context, req *model.FindByIDRequest) (*model.PublicUser, error) {
	user, err := s.users.FindByID(context.WithoutCancel(ctx), *req)
	if err != nil {
		return nil, apierror.From(err)
	}
	return &user, nil
}
