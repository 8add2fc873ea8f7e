package inventoryrpc

import (
	"context"

	"google.golang.org/grpc"
)

type InventoryClient interface {
	GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*Product, error)
	ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	ReserveStock(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockResponse, error)
	ReleaseStock(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockResponse, error)
}

type inventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) InventoryClient {
	return &inventoryClient{cc: cc}
}

func (c *inventoryClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *inventoryClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*Product, error) {
	out := new(Product)
	if err := c.invoke(ctx, MethodGetProduct, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	out := new(ListProductsResponse)
	if err := c.invoke(ctx, MethodListProducts, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryClient) ReserveStock(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockResponse, error) {
	out := new(StockResponse)
	if err := c.invoke(ctx, MethodReserveStock, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryClient) ReleaseStock(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockResponse, error) {
	out := new(StockResponse)
	if err := c.invoke(ctx, MethodReleaseStock, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
