package inventoryrpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "orderflow.inventory.v1.Inventory"

	MethodGetProduct   = "/" + ServiceName + "/GetProduct"
	MethodListProducts = "/" + ServiceName + "/ListProducts"
	MethodReserveStock = "/" + ServiceName + "/ReserveStock"
	MethodReleaseStock = "/" + ServiceName + "/ReleaseStock"
)

type InventoryServer interface {
	GetProduct(ctx context.Context, req *GetProductRequest) (*Product, error)
	ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error)
	ReserveStock(ctx context.Context, req *StockRequest) (*StockResponse, error)
	ReleaseStock(ctx context.Context, req *StockRequest) (*StockResponse, error)
}

func Register(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "ListProducts", Handler: listProductsHandler},
		{MethodName: "ReserveStock", Handler: reserveStockHandler},
		{MethodName: "ReleaseStock", Handler: releaseStockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderflow/inventory/v1",
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetProductRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetProduct}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).GetProduct(ctx, req.(*GetProductRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListProductsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListProducts}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ListProducts(ctx, req.(*ListProductsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reserveStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ReserveStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReserveStock}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ReserveStock(ctx, req.(*StockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func releaseStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ReleaseStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReleaseStock}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ReleaseStock(ctx, req.(*StockRequest))
	}
	return interceptor(ctx, in, info, handler)
}
