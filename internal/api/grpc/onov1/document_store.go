// Package onov1 описывает gRPC сервис хранилища документов ono.v1.DocumentStore.
// Сообщения берутся из well-known types: документ передается как BytesValue,
// ключ документа передается в metadata запроса.
package onov1

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SplayLobster/MemoApp2/internal/document"
)

const (
	ServiceName = "ono.v1.DocumentStore"

	FetchFullMethodName = "/ono.v1.DocumentStore/Fetch"
	StoreFullMethodName = "/ono.v1.DocumentStore/Store"

	// Ключи metadata с ключом документа
	AppCodeHeader  = "x-app-code"
	DataNameHeader = "x-data-name"

	// ErrorDomain домен для errdetails.ErrorInfo
	ErrorDomain = "ono.v1"
)

// DocumentStoreServer серверная часть сервиса
type DocumentStoreServer interface {
	Fetch(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Store(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

// RegisterDocumentStoreServer регистрирует реализацию сервиса на сервере
func RegisterDocumentStoreServer(s grpc.ServiceRegistrar, srv DocumentStoreServer) {
	s.RegisterService(&DocumentStoreServiceDesc, srv)
}

func fetchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentStoreServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FetchFullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DocumentStoreServer).Fetch(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func storeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentStoreServer).Store(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: StoreFullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DocumentStoreServer).Store(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// DocumentStoreServiceDesc описание сервиса для grpc.ServiceRegistrar
var DocumentStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
		{MethodName: "Store", Handler: storeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ono/v1/document_store.proto",
}

// DocumentStoreClient клиентская часть сервиса
type DocumentStoreClient interface {
	Fetch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Store(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type documentStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewDocumentStoreClient создает клиент поверх соединения
func NewDocumentStoreClient(cc grpc.ClientConnInterface) DocumentStoreClient {
	return &documentStoreClient{cc: cc}
}

func (c *documentStoreClient) Fetch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, FetchFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentStoreClient) Store(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, StoreFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type localDocumentStoreClient struct {
	srv DocumentStoreServer
}

// NewLocalDocumentStoreClient вызывает srv в том же процессе, без сети и без интерцепторов.
// Исходящая metadata передается обработчику как входящая.
func NewLocalDocumentStoreClient(srv DocumentStoreServer) DocumentStoreClient {
	return &localDocumentStoreClient{srv: srv}
}

func (c *localDocumentStoreClient) Fetch(ctx context.Context, in *emptypb.Empty, _ ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.srv.Fetch(toIncoming(ctx), in)
}

func (c *localDocumentStoreClient) Store(ctx context.Context, in *wrapperspb.BytesValue, _ ...grpc.CallOption) (*emptypb.Empty, error) {
	return c.srv.Store(toIncoming(ctx), in)
}

func toIncoming(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	return metadata.NewIncomingContext(ctx, md.Copy())
}

// OutgoingContext добавляет ключ документа в исходящую metadata
func OutgoingContext(ctx context.Context, key document.Key) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		AppCodeHeader, key.AppCode,
		DataNameHeader, key.DataName,
	)
}

// KeyFromIncomingContext извлекает и проверяет ключ документа из входящей metadata
func KeyFromIncomingContext(ctx context.Context) (document.Key, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	key := document.Key{
		AppCode:  first(md.Get(AppCodeHeader)),
		DataName: first(md.Get(DataNameHeader)),
	}
	if err := key.Validate(); err != nil {
		return document.Key{}, err
	}
	return key, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
