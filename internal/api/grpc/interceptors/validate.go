package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
)

// ValidateKey отклоняет запросы к DocumentStore без корректного ключа документа в metadata.
// Остальные сервисы (health, reflection) пропускаются.
func ValidateKey(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if info.FullMethod != onov1.FetchFullMethodName && info.FullMethod != onov1.StoreFullMethodName {
		return handler(ctx, req)
	}

	if _, err := onov1.KeyFromIncomingContext(ctx); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "validation failed: %v", err)
	}

	return handler(ctx, req)
}
