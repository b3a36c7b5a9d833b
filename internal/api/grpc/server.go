package grpc

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/SplayLobster/MemoApp2/internal/api/grpc/interceptors"
	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
	"github.com/SplayLobster/MemoApp2/internal/auth"
)

// ServerOptions настройки gRPC сервера
type ServerOptions struct {
	Verifier      *auth.Verifier
	UseReflection bool
}

// NewServer создает и настраивает gRPC сервер с интерцепторами и конфигурацией
func NewServer(handler onov1.DocumentStoreServer, opts ServerOptions, log *zap.SugaredLogger) *grpc.Server {
	// Порядок интерцепторов важен:
	// 1. Logger - логирует все запросы (включая заблокированные)
	// 2. ValidateKey - проверяет ключ документа в metadata
	// 3. Auth - проверяет авторизацию и блокирует неавторизованные запросы
	grpcServer := grpc.NewServer(
		// Ограничиваем количество одновременных стримов
		grpc.MaxConcurrentStreams(25),
		// Документ передается целиком, поднимаем лимит сообщения
		grpc.MaxRecvMsgSize(16<<20),
		// KeepAlive параметры для защиты от зависших соединений
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     30 * time.Minute, // Закрытие неактивных соединений через 30 минут
			MaxConnectionAge:      1 * time.Hour,    // Максимальное время жизни соединения (ротация)
			MaxConnectionAgeGrace: 5 * time.Second,  // Ожидание завершения активных запросов перед закрытием
			Time:                  10 * time.Minute, // Время между пингами
			Timeout:               20 * time.Second, // Время ожидания ответа на ping
		}),
		grpc.ChainUnaryInterceptor(
			interceptors.Logger(log),
			interceptors.ValidateKey,
			interceptors.Auth(opts.Verifier),
		),
	)

	onov1.RegisterDocumentStoreServer(grpcServer, handler)
	log.Infow("registered grpc service", "service", onov1.ServiceName)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(onov1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Настройка reflection (для grpcurl/grpcui)
	if opts.UseReflection {
		reflection.Register(grpcServer)
		log.Infow("enabled grpc reflection")
	}

	return grpcServer
}
