package inventory

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrSKUExists  = errors.New("product with this sku already exists")
	ErrValidation = errors.New("invalid product")
)

type Repository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}
