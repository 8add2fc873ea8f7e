package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmehra2102/orderflow/internal/product/domain"
	"github.com/dmehra2102/orderflow/pkg/auth"
)

const (
	OpList    = "product.list"
	OpGet     = "product.get"
	OpCreate  = "product.create"
	OpUpdate  = "product.update"
	OpDelete  = "product.delete"
	OpReserve = "product.reserve"
	OpRelease = "product.release"
)

// Stock movements outside an order go through Update; Reserve and Release
// are only open to the order service.
var requirements = map[string]auth.Requirement{
	OpList:    auth.Require(OpList, auth.RoleAdmin, auth.RoleUser, auth.RoleService),
	OpGet:     auth.Require(OpGet, auth.RoleAdmin, auth.RoleUser, auth.RoleService),
	OpCreate:  auth.Require(OpCreate, auth.RoleAdmin),
	OpUpdate:  auth.Require(OpUpdate, auth.RoleAdmin),
	OpDelete:  auth.Require(OpDelete, auth.RoleAdmin),
	OpReserve: auth.Require(OpReserve, auth.RoleService),
	OpRelease: auth.Require(OpRelease, auth.RoleService),
}

type Service struct {
	log  *slog.Logger
	repo Repository
	gate *auth.Gate
}

func NewService(log *slog.Logger, repo Repository, gate *auth.Gate) *Service {
	return &Service{log: log, repo: repo, gate: gate}
}

func (s *Service) authorize(caller auth.Principal, op string) error {
	return s.gate.Authorize(caller, requirements[op])
}

func (s *Service) List(ctx context.Context, caller auth.Principal) ([]domain.Product, error) {
	if err := s.authorize(caller, OpList); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (domain.Product, error) {
	if err := s.authorize(caller, OpGet); err != nil {
		return domain.Product{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, p domain.Product) (domain.Product, error) {
	if err := s.authorize(caller, OpCreate); err != nil {
		return domain.Product{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", created.ID, "by", caller.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := s.authorize(caller, OpUpdate); err != nil {
		return domain.Product{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.Product{}, err
	}
	if patch.Empty() {
		return s.repo.Get(ctx, id)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product updated", "product_id", id, "by", caller.ID)
	return updated, nil
}

// Delete succeeds whether or not the product exists.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	if err := s.authorize(caller, OpDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", "product_id", id, "by", caller.ID)
	return nil
}

func (s *Service) Reserve(ctx context.Context, caller auth.Principal, id string, qty int) error {
	if err := s.authorize(caller, OpReserve); err != nil {
		return err
	}
	if err := domain.ValidateStockQuantity(qty); err != nil {
		return err
	}
	if err := s.repo.Reserve(ctx, id, qty); err != nil {
		return err
	}
	s.log.Info("stock reserved", "product_id", id, "quantity", qty, "by", caller.ID)
	return nil
}

func (s *Service) Release(ctx context.Context, caller auth.Principal, id string, qty int) error {
	if err := s.authorize(caller, OpRelease); err != nil {
		return err
	}
	if err := domain.ValidateStockQuantity(qty); err != nil {
		return err
	}
	if err := s.repo.Release(ctx, id, qty); err != nil {
		return err
	}
	s.log.Info("stock released", "product_id", id, "quantity", qty, "by", caller.ID)
	return nil
}
