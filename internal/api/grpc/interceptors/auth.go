package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/SplayLobster/MemoApp2/internal/auth"
)

const (
	// authorizationHeader - имя заголовка для авторизации в metadata
	authorizationHeader = "authorization"
	// healthService - health checks доступны без токена
	healthService = "/grpc.health.v1.Health/"
)

type subjectKey struct{}

// SubjectFromContext возвращает subject проверенного токена
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

// Auth проверяет наличие и валидность токена авторизации в metadata запроса.
// Токен должен быть передан в заголовке "authorization" в формате "Bearer <token>".
// Если проверка отключена, запрос пропускается без изменений.
func Auth(verifier *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !verifier.Enabled() || strings.HasPrefix(info.FullMethod, healthService) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "metadata not provided")
		}

		authHeaders := md.Get(authorizationHeader)
		if len(authHeaders) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "authorization header not provided")
		}

		token, ok := auth.BearerToken(authHeaders[0])
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "invalid authorization header format")
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token")
		}

		return handler(context.WithValue(ctx, subjectKey{}, subject), req)
	}
}
