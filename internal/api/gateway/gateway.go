package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
	"github.com/SplayLobster/MemoApp2/internal/api/http/middleware"
	"github.com/SplayLobster/MemoApp2/internal/auth"
	"github.com/SplayLobster/MemoApp2/internal/config"
	"github.com/SplayLobster/MemoApp2/internal/document"
)

const (
	documentPath = "/documents/{appCode}/{dataName}"
	healthPath   = "/healthz"

	// maxBodySize ограничивает размер принимаемого документа
	maxBodySize = 16 << 20
)

// Gateway HTTP поверхность хранилища, запросы проксируются в ono.v1.DocumentStore
type Gateway struct {
	mux    *runtime.ServeMux
	client onov1.DocumentStoreClient
	log    *zap.SugaredLogger
}

// New создает runtime.ServeMux и регистрирует на нем маршруты хранилища
func New(client onov1.DocumentStoreClient, log *zap.SugaredLogger) (*Gateway, error) {
	g := &Gateway{client: client, log: log}

	// Передаем HTTP заголовки (особенно Authorization) в gRPC metadata
	// Это необходимо для работы Auth интерцептора на gRPC сервере
	g.mux = runtime.NewServeMux(
		runtime.WithMetadata(func(ctx context.Context, req *http.Request) metadata.MD {
			md := metadata.New(nil)
			if header := req.Header.Get("Authorization"); header != "" {
				md.Set("authorization", header)
			}
			return md
		}),
	)

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, documentPath, g.fetch},
		{http.MethodPut, documentPath, g.store},
		{http.MethodGet, healthPath, g.health},
	}
	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}

	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// annotate переносит заголовки запроса и ключ документа из пути в исходящую metadata
func (g *Gateway) annotate(r *http.Request, fullMethod string, pathParams map[string]string) (context.Context, error) {
	ctx, err := runtime.AnnotateContext(r.Context(), g.mux, r, fullMethod)
	if err != nil {
		return nil, err
	}
	key := document.Key{AppCode: pathParams["appCode"], DataName: pathParams["dataName"]}
	return onov1.OutgoingContext(ctx, key), nil
}

func (g *Gateway) fetch(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	_, outbound := runtime.MarshalerForRequest(g.mux, r)

	ctx, err := g.annotate(r, onov1.FetchFullMethodName, pathParams)
	if err != nil {
		runtime.HTTPError(r.Context(), g.mux, outbound, w, r, err)
		return
	}

	resp, err := g.client.Fetch(ctx, &emptypb.Empty{})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			g.log.Warnw("gateway fetch failed", "path", r.URL.Path, "error", err)
		}
		runtime.HTTPError(ctx, g.mux, outbound, w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.GetValue())
}

func (g *Gateway) store(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	_, outbound := runtime.MarshalerForRequest(g.mux, r)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx, err := g.annotate(r, onov1.StoreFullMethodName, pathParams)
	if err != nil {
		runtime.HTTPError(r.Context(), g.mux, outbound, w, r, err)
		return
	}

	if _, err := g.client.Store(ctx, wrapperspb.Bytes(data)); err != nil {
		g.log.Warnw("gateway store failed", "path", r.URL.Path, "error", err)
		runtime.HTTPError(ctx, g.mux, outbound, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Setup собирает HTTP сервер хранилища: gateway поверх client и middleware
func Setup(client onov1.DocumentStoreClient, cfg *config.ConfigGateway, verifier *auth.Verifier, log *zap.SugaredLogger) (http.Handler, error) {
	gw, err := New(client, log)
	if err != nil {
		return nil, err
	}

	// Применение middleware (в обратном порядке выполнения):
	// 1. CORS (самый внешний слой, отвечает на preflight)
	// 2. Logging (логирует все запросы)
	// 3. Rate Limiting (ограничивает количество запросов)
	// 4. Auth (проверка токена)
	var handler http.Handler = gw
	handler = middleware.Auth(log, verifier, healthPath)(handler)
	handler = middleware.RateLimit(log, cfg.RateLimitRPS, cfg.RateLimitBurst)(handler)
	handler = middleware.Logging(log)(handler)
	handler = middleware.CORS(cfg)(handler)
	return handler, nil
}
