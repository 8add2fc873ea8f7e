package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationMD = "authorization"

func UnaryServerInterceptor(v *Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get(authorizationMD)
		if len(vals) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		raw, ok := bearer(vals[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "malformed bearer token")
		}
		p, err := v.Verify(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}
