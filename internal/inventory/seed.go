package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DemoProducts is the catalogue loaded when demo data seeding is enabled.
func DemoProducts() []Product {
	return []Product{
		{
			Name:        "Wireless Mouse X200",
			SKU:         "WMX200",
			Category:    "Accessories",
			Quantity:    50,
			Price:       decimal.RequireFromString("29.99"),
			Description: "High-precision wireless mouse with ergonomic design",
		},
		{
			Name:        "Mechanical Keyboard K500",
			SKU:         "MK500",
			Category:    "Accessories",
			Quantity:    20,
			Price:       decimal.RequireFromString("89.99"),
			Description: "RGB backlit mechanical keyboard with blue switches",
		},
	}
}

// SeedProducts creates every product whose SKU is not taken yet and returns
// how many were created. Existing products are left untouched.
func SeedProducts(ctx context.Context, svc Service, products []Product) (int, error) {
	created := 0
	for i := range products {
		p := products[i]
		if _, err := svc.CreateProduct(ctx, &p); err != nil {
			if errors.Is(err, ErrSKUExists) {
				log.Debug().Str("sku", p.SKU).Msg("seed: product already present")
				continue
			}
			return created, fmt.Errorf("seed: failed to create product %s: %w", p.SKU, err)
		}
		created++
	}

	return created, nil
}
