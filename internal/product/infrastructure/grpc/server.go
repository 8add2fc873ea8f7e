package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/orderflow/internal/product/application"
	"github.com/dmehra2102/orderflow/internal/product/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
	"github.com/dmehra2102/orderflow/pkg/inventoryrpc"
)

type Server struct {
	log     *slog.Logger
	service *application.Service
}

func NewServer(log *slog.Logger, service *application.Service) *Server {
	return &Server{log: log, service: service}
}

func toMessage(p domain.Product) inventoryrpc.Product {
	return inventoryrpc.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.String(),
		Quantity: p.Quantity,
	}
}

func caller(ctx context.Context) auth.Principal {
	p, _ := auth.FromContext(ctx)
	return p
}

func (s *Server) GetProduct(ctx context.Context, req *inventoryrpc.GetProductRequest) (*inventoryrpc.Product, error) {
	p, err := s.service.Get(ctx, caller(ctx), req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	msg := toMessage(p)
	return &msg, nil
}

func (s *Server) ListProducts(ctx context.Context, _ *inventoryrpc.ListProductsRequest) (*inventoryrpc.ListProductsResponse, error) {
	products, err := s.service.List(ctx, caller(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp := &inventoryrpc.ListProductsResponse{Products: make([]inventoryrpc.Product, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toMessage(p))
	}
	return resp, nil
}

func (s *Server) ReserveStock(ctx context.Context, req *inventoryrpc.StockRequest) (*inventoryrpc.StockResponse, error) {
	if err := s.service.Reserve(ctx, caller(ctx), req.ProductID, req.Quantity); err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryrpc.StockResponse{}, nil
}

func (s *Server) ReleaseStock(ctx context.Context, req *inventoryrpc.StockRequest) (*inventoryrpc.StockResponse, error) {
	if err := s.service.Release(ctx, caller(ctx), req.ProductID, req.Quantity); err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryrpc.StockResponse{}, nil
}

func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return status.Error(codes.PermissionDenied, "access denied")
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidProduct):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.log.Error("inventory rpc failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// NewGRPCServer builds an instrumented server with token verification and
// the inventory service registered.
func NewGRPCServer(srv *Server, verifier *auth.Verifier) *grpc.Server {
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(auth.UnaryServerInterceptor(verifier)),
	)
	inventoryrpc.Register(gs, srv)
	return gs
}

func Run(addr string, gs *grpc.Server, log *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		log.Info("grpc listening", "addr", addr)
		if err := gs.Serve(lis); err != nil {
			log.Error("grpc server error", "err", err)
		}
	}()
	return nil
}
