package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Logger перехватывает запросы и логирует метод, статус ответа и время выполнения
func Logger(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		if err != nil {
			st := status.Convert(err)
			log.Warnw("grpc request failed",
				"method", info.FullMethod,
				"code", st.Code().String(),
				"message", st.Message(),
				"duration", duration,
			)
		} else {
			log.Infow("grpc request", "method", info.FullMethod, "duration", duration)
		}

		return resp, err
	}
}
