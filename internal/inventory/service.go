package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

type Service interface {
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, product *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validate(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)

	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case p.SKU == "":
		return fmt.Errorf("%w: sku is required", ErrValidation)
	case p.Quantity < 0:
		return fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	case !money.InRange(p.Price):
		return fmt.Errorf("%w: price cannot exceed %s", ErrValidation, money.Format(money.MaxAmount))
	case !money.HasValidScale(p.Price):
		return fmt.Errorf("%w: price must have at most %d decimal places", ErrValidation, money.Scale)
	}

	return nil
}

func (s *service) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	if err := validate(product); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate product id: %w", err)
	}
	product.ID = id

	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, ErrSKUExists) {
			log.Warn().Str("sku", product.SKU).Msg("service: duplicate sku on create")
			return nil, ErrSKUExists
		}
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", product.ID).Str("sku", product.SKU).Msg("service: product created")
	return product, nil
}

func (s *service) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product by id: %w", err)
	}

	return product, nil
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	return products, nil
}

// UpdateProduct replaces every attribute of an existing product, stock included.
func (s *service) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	if product.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	if err := validate(product); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrSKUExists):
			return nil, ErrSKUExists
		}
		log.Error().Err(err).Stringer("product_id", product.ID).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	log.Info().Stringer("product_id", product.ID).Int("quantity", product.Quantity).Msg("service: product updated")
	return product, nil
}

// DeleteProduct removes the product. Order items keep their id and price snapshot.
func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product deleted")
	return nil
}
