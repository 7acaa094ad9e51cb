package rpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

const ServiceName = "authgate.v1.AuthService"

// Metadata headers sent with every call.
const (
	PatternHeader   = "x-message-pattern"
	RequestIDHeader = "x-request-id"
)

// Pattern names an internal message.
type Pattern string

const (
	PatternRegister Pattern = "user.register"
	PatternLogin    Pattern = "user.login"
	PatternRefresh  Pattern = "user.refresh"
	PatternFindAll  Pattern = "user.findAll"
	PatternFindByID Pattern = "user.findById"
)

var patternMethods = map[Pattern]string{
	PatternRegister: "Register",
	PatternLogin:    "Login",
	PatternRefresh:  "Refresh",
	PatternFindAll:  "FindAll",
	PatternFindByID: "FindByID",
}

// Patterns lists every message pattern in a stable order.
func Patterns() []Pattern {
	return []Pattern{PatternRegister, PatternLogin, PatternRefresh, PatternFindAll, PatternFindByID}
}

// Method is the gRPC method name bound to p.
func (p Pattern) Method() string {
	return patternMethods[p]
}

func (p Pattern) FullMethod() string {
	return "/" + ServiceName + "/" + p.Method()
}

// PatternForMethod resolves a full gRPC method name back to its pattern.
func PatternForMethod(fullMethod string) (Pattern, bool) {
	method, ok := strings.CutPrefix(fullMethod, "/"+ServiceName+"/")
	if !ok {
		return "", false
	}
	for pattern, name := range patternMethods {
		if name == method {
			return pattern, true
		}
	}
	return "", false
}

func incomingValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
