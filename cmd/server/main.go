package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SplayLobster/MemoApp2/internal/auth"
	"github.com/SplayLobster/MemoApp2/internal/config"
	"github.com/SplayLobster/MemoApp2/internal/logger"
	"github.com/SplayLobster/MemoApp2/internal/server"
)

func main() {
	configFile := flag.String("config", "config.yml", "path to config file")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	flag.Parse()

	// Загружаем конфигурацию из файла
	appConfig, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Error initializing config: %v", err)
	}

	if *issueToken != "" {
		verifier := auth.NewVerifier(appConfig.Auth.JWTSecret, appConfig.Auth.Issuer)
		token, err := verifier.Issue(*issueToken, time.Duration(appConfig.Auth.TokenTTL)*time.Second)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	zlog, err := logger.New(appConfig.Logger, "ono-server")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	srv, err := server.NewServer(appConfig, zlog)
	if err != nil {
		zlog.Fatalw("failed to create server", "error", err)
	}
	if err := srv.Initialize(context.Background()); err != nil {
		_ = srv.Shutdown()
		zlog.Fatalw("failed to initialize server", "error", err)
	}

	// Канал для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := srv.Start()

	// Ожидание сигнала или ошибки
	select {
	case err := <-errChan:
		zlog.Errorw("server error", "error", err)
	case sig := <-sigChan:
		zlog.Infow("received signal, starting graceful shutdown", "signal", sig.String())
	}

	if err := srv.Shutdown(); err != nil {
		zlog.Errorw("shutdown finished with errors", "error", err)
	}
	zlog.Infow("document store stopped")
}
