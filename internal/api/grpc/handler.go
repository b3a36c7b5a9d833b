package grpc

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SplayLobster/MemoApp2/internal/api/grpc/onov1"
	"github.com/SplayLobster/MemoApp2/internal/document"
)

var _ onov1.DocumentStoreServer = (*Handler)(nil)

// Handler реализует ono.v1.DocumentStore поверх бэкенда хранилища
type Handler struct {
	store document.Client
	log   *zap.SugaredLogger
}

// NewHandler создает новый gRPC handler
func NewHandler(store document.Client, log *zap.SugaredLogger) *Handler {
	return &Handler{store: store, log: log}
}

// Fetch возвращает документ по ключу из metadata
func (h *Handler) Fetch(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	key, err := onov1.KeyFromIncomingContext(ctx)
	if err != nil {
		return nil, handleError(key, err)
	}

	data, err := h.store.Fetch(ctx, key)
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			h.log.Errorw("fetch document failed", "key", key.String(), "error", err)
		}
		return nil, handleError(key, err)
	}

	return wrapperspb.Bytes(data), nil
}

// Store перезаписывает документ по ключу из metadata
func (h *Handler) Store(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	key, err := onov1.KeyFromIncomingContext(ctx)
	if err != nil {
		return nil, handleError(key, err)
	}

	if err := h.store.Store(ctx, key, req.GetValue()); err != nil {
		h.log.Errorw("store document failed", "key", key.String(), "error", err)
		return nil, handleError(key, err)
	}

	return &emptypb.Empty{}, nil
}

// handleError конвертирует ошибки хранилища в gRPC статусы с детализацией
func handleError(key document.Key, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, document.ErrNotFound) {
		st := status.New(codes.NotFound, "document not found")
		st, _ = st.WithDetails(
			&errdetails.ResourceInfo{
				ResourceType: "ono.document",
				ResourceName: key.String(),
				Description:  "The requested document has not been stored yet",
			},
			&errdetails.ErrorInfo{Reason: "DOCUMENT_NOT_FOUND", Domain: onov1.ErrorDomain},
		)
		return st.Err()
	}

	if errors.Is(err, document.ErrInvalidKey) {
		st := status.New(codes.InvalidArgument, err.Error())
		st, _ = st.WithDetails(&errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{
				{Field: onov1.AppCodeHeader + "," + onov1.DataNameHeader, Description: err.Error()},
			},
		})
		return st.Err()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	st := status.New(codes.Internal, "internal error")
	st, _ = st.WithDetails(&errdetails.ErrorInfo{Reason: "INTERNAL_ERROR", Domain: onov1.ErrorDomain})
	return st.Err()
}
