// Package catalog reads the product catalog owned by another service.
// Only the fields needed to price and snapshot an order line are loaded.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-custom-orders/internal/apperr"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

type Product struct {
	ID           int64
	CollectionID *int64
	Name         string
	ProductType  string
	Price        decimal.Decimal
	Active       bool
}

type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	Price     decimal.NullDecimal // NULL means the product price applies
	Active    bool
}

// Catalog is the narrow read interface the order aggregate depends on.
// Lookups run on the caller's querier so they see the same transaction.
type Catalog interface {
	Product(ctx context.Context, q postgres.Querier, id int64) (Product, error)
	Variant(ctx context.Context, q postgres.Querier, id int64) (Variant, error)
	CollectionExists(ctx context.Context, q postgres.Querier, id int64) (bool, error)
}

// Store implements Catalog over the collections, products and product_variants tables.
type Store struct{}

var _ Catalog = Store{}

func (Store) Product(ctx context.Context, q postgres.Querier, id int64) (Product, error) {
	var p Product
	err := q.QueryRow(ctx, `
		SELECT id, collection_id, name, product_type, price, is_active
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.CollectionID, &p.Name, &p.ProductType, &p.Price, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product %d not found", id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("read product %d: %w", id, err)
	}
	return p, nil
}

func (Store) Variant(ctx context.Context, q postgres.Querier, id int64) (Variant, error) {
	var v Variant
	err := q.QueryRow(ctx, `
		SELECT id, product_id, name, price, is_active
		FROM product_variants WHERE id = $1`, id,
	).Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, apperr.NotFound("product variant %d not found", id)
	}
	if err != nil {
		return Variant{}, fmt.Errorf("read product variant %d: %w", id, err)
	}
	return v, nil
}

func (Store) CollectionExists(ctx context.Context, q postgres.Querier, id int64) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check collection %d: %w", id, err)
	}
	return ok, nil
}

// Line is a resolved, priceable catalog reference.
type Line struct {
	Product Product
	Variant *Variant
}

// UnitPrice is the variant price when the variant carries one, else the product price.
func (l Line) UnitPrice() decimal.Decimal {
	if l.Variant != nil && l.Variant.Price.Valid {
		return l.Variant.Price.Decimal
	}
	return l.Product.Price
}

// Resolve loads a product and optional variant and checks that they belong together
// and are sellable. collectionID, when set, must exist.
func Resolve(ctx context.Context, c Catalog, q postgres.Querier, productID int64, variantID, collectionID *int64) (Line, error) {
	if productID <= 0 {
		return Line{}, apperr.Validation("product_id is required")
	}
	p, err := c.Product(ctx, q, productID)
	if err != nil {
		return Line{}, err
	}
	if !p.Active {
		return Line{}, apperr.Validation("product %d is not available", productID)
	}
	out := Line{Product: p}

	if variantID != nil {
		v, err := c.Variant(ctx, q, *variantID)
		if err != nil {
			return Line{}, err
		}
		if v.ProductID != productID {
			return Line{}, apperr.Validation("variant %d does not belong to product %d", v.ID, productID)
		}
		if !v.Active {
			return Line{}, apperr.Validation("variant %d is not available", v.ID)
		}
		out.Variant = &v
	}

	if collectionID != nil {
		ok, err := c.CollectionExists(ctx, q, *collectionID)
		if err != nil {
			return Line{}, err
		}
		if !ok {
			return Line{}, apperr.NotFound("collection %d not found", *collectionID)
		}
	}
	return out, nil
}
