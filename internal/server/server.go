package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/SplayLobster/MemoApp2/internal/api/gateway"
	grpcapi "github.com/SplayLobster/MemoApp2/internal/api/grpc"
	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
	"github.com/SplayLobster/MemoApp2/internal/auth"
	"github.com/SplayLobster/MemoApp2/internal/config"
	"github.com/SplayLobster/MemoApp2/internal/document"
	"github.com/SplayLobster/MemoApp2/internal/document/backend"
)

// Server сервер хранилища документов с HTTP и gRPC поверхностями
type Server struct {
	// HTTP компоненты
	HTTPServer *http.Server
	HTTPAddr   string
	httpLis    net.Listener

	// gRPC компоненты
	GRPCServer *grpc.Server
	GRPCAddr   string
	grpcLis    net.Listener

	// gatewayConn соединение gateway с собственным gRPC сервером
	gatewayConn *grpc.ClientConn

	Store   document.Client
	closeFn backend.CloseFunc

	Config *config.Config
	log    *zap.SugaredLogger
}

// NewServer создает сервер и открывает listeners.
// Порт 0 означает любой свободный порт.
func NewServer(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	grpcAddr := "0.0.0.0:" + strconv.Itoa(cfg.Server.PortGRPC)
	httpAddr := "0.0.0.0:" + strconv.Itoa(cfg.Server.PortHTTP)

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", httpAddr, err)
	}

	log.Infow("config loaded",
		"grpc_addr", grpcLis.Addr().String(),
		"http_addr", httpLis.Addr().String(),
		"backend", cfg.Server.Backend,
	)

	return &Server{
		HTTPAddr: httpLis.Addr().String(),
		httpLis:  httpLis,
		GRPCAddr: grpcLis.Addr().String(),
		grpcLis:  grpcLis,
		Config:   cfg,
		log:      log,
	}, nil
}

// Initialize инициализирует компоненты сервера (Backend → Handlers → Servers)
func (s *Server) Initialize(ctx context.Context) error {
	name := s.Config.Server.Backend
	if name == backend.HTTP || name == backend.GRPC {
		return fmt.Errorf("backend %q cannot serve the document store itself", name)
	}

	store, closeFn, err := backend.Open(ctx, name, s.Config.Store, s.log)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	s.Store = store
	s.closeFn = closeFn

	verifier := auth.NewVerifier(s.Config.Auth.JWTSecret, s.Config.Auth.Issuer)
	if verifier.Enabled() {
		s.log.Infow("bearer token auth enabled", "issuer", s.Config.Auth.Issuer)
	} else {
		s.log.Warnw("bearer token auth disabled, jwt_secret is empty")
	}

	s.GRPCServer = grpcapi.NewServer(
		grpcapi.NewHandler(store, s.log),
		grpcapi.ServerOptions{Verifier: verifier, UseReflection: s.Config.Server.UseReflection},
		s.log,
	)

	// Gateway ходит в gRPC сервер через loopback
	_, port, err := net.SplitHostPort(s.GRPCAddr)
	if err != nil {
		return fmt.Errorf("parse grpc addr %s: %w", s.GRPCAddr, err)
	}
	conn, err := grpc.NewClient(net.JoinHostPort("127.0.0.1", port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("failed to dial grpc server: %w", err)
	}
	s.gatewayConn = conn

	handler, err := gateway.Setup(onov1.NewDocumentStoreClient(conn), s.Config.Gateway, verifier, s.log)
	if err != nil {
		return fmt.Errorf("setup gateway: %w", err)
	}

	sc := s.Config.Server
	s.HTTPServer = &http.Server{
		Handler:           handler,
		ReadTimeout:       seconds(sc.HTTPReadTimeout),
		WriteTimeout:      seconds(sc.HTTPWriteTimeout),
		IdleTimeout:       seconds(sc.HTTPIdleTimeout),
		ReadHeaderTimeout: seconds(sc.HTTPReadHeaderTimeout),
	}
	s.log.Infow("cors enabled", "origins", s.Config.Gateway.CORSAllowedOrigins)
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Start запускает gRPC и HTTP серверы в горутинах
// Возвращает канал ошибок для отслеживания ошибок серверов
func (s *Server) Start() <-chan error {
	errChan := make(chan error, 2)

	go func() {
		s.log.Infow("grpc server listening", "addr", s.GRPCAddr)
		if err := s.GRPCServer.Serve(s.grpcLis); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		s.log.Infow("http server listening", "addr", s.HTTPAddr)
		if err := s.HTTPServer.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return errChan
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown() error {
	s.log.Infow("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), seconds(s.Config.Server.GracefulShutdownTimeout))
	defer cancel()

	var errs []error
	if s.HTTPServer != nil {
		if err := s.HTTPServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if s.GRPCServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.GRPCServer.GracefulStop()
			close(stopped)
		}()

		// Ожидаем завершения или таймаут
		select {
		case <-stopped:
			s.log.Infow("grpc server stopped gracefully")
		case <-ctx.Done():
			s.log.Warnw("graceful shutdown timeout, forcing stop")
			s.GRPCServer.Stop()
			errs = append(errs, ctx.Err())
		}
	} else {
		_ = s.grpcLis.Close()
	}
	if s.HTTPServer == nil {
		_ = s.httpLis.Close()
	}
	if s.gatewayConn != nil {
		if err := s.gatewayConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gateway conn: %w", err))
		}
	}

	if s.closeFn != nil {
		if err := s.closeFn(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	return errors.Join(errs...)
}
