package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
	"github.com/SplayLobster/MemoApp2/internal/document"
)

var _ document.Client = (*Client)(nil)

// Client клиент хранилища документов поверх gRPC
type Client struct {
	api     onov1.DocumentStoreClient
	conn    *grpc.ClientConn
	token   string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New создает клиент поверх уже открытого соединения
func New(cc grpc.ClientConnInterface, token string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{
		api:     onov1.NewDocumentStoreClient(cc),
		token:   token,
		timeout: timeout,
		log:     log,
	}
}

// Dial открывает соединение с сервером хранилища по адресу addr
func Dial(addr, token string, timeout time.Duration, log *zap.SugaredLogger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc.NewClient: %w", err)
	}
	c := New(conn, token, timeout, log)
	c.conn = conn
	return c, nil
}

// Close закрывает соединение, если оно было открыто через Dial
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) callContext(ctx context.Context, key document.Key) (context.Context, context.CancelFunc) {
	ctx = onov1.OutgoingContext(ctx, key)
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// Fetch читает документ целиком
func (c *Client) Fetch(ctx context.Context, key document.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := c.callContext(ctx, key)
	defer cancel()

	resp, err := c.api.Fetch(callCtx, &emptypb.Empty{})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, document.ErrNotFound
		}
		c.log.Warnw("grpc fetch failed", "key", key.String(), "error", err)
		return nil, document.Wrap("fetch", key, err)
	}
	return resp.GetValue(), nil
}

// Store перезаписывает документ целиком
func (c *Client) Store(ctx context.Context, key document.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	callCtx, cancel := c.callContext(ctx, key)
	defer cancel()

	if _, err := c.api.Store(callCtx, wrapperspb.Bytes(data)); err != nil {
		c.log.Warnw("grpc store failed", "key", key.String(), "error", err)
		return document.Wrap("store", key, err)
	}
	return nil
}
