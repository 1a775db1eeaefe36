// Package middleware contains gRPC interceptors for the coordinator.
package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
)

// MetadataCorrelationID is the gRPC metadata key carrying the correlation
// ID, the gRPC-metadata equivalent of the teacher's X-Correlation-ID HTTP
// header.
const MetadataCorrelationID = "x-correlation-id"

// CorrelationIDUnaryInterceptor stamps every unary call's context with a
// correlation ID, generating one if the caller didn't send one, mirroring
// the teacher's gin CorrelationID() middleware.
func CorrelationIDUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx = withCorrelationID(ctx)
	return handler(ctx, req)
}

// CorrelationIDStreamInterceptor is the streaming-call analogue of
// CorrelationIDUnaryInterceptor.
func CorrelationIDStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	wrapped := &correlatedServerStream{ServerStream: ss, ctx: withCorrelationID(ss.Context())}
	return handler(srv, wrapped)
}

type correlatedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *correlatedServerStream) Context() context.Context { return s.ctx }

func withCorrelationID(ctx context.Context) context.Context {
	correlationID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(MetadataCorrelationID); len(vals) > 0 {
			correlationID = vals[0]
		}
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return context.WithValue(ctx, logging.CorrelationIDKey, correlationID)
}
