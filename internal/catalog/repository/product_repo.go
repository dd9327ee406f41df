package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, error)
	// DecreaseStock atomically checks and decrements stock, returning the
	// unit price. ErrInsufficientStock when the product exists but stock is
	// short, ErrProductNotFound when it does not exist.
	DecreaseStock(ctx context.Context, productID, quantity int64) (int64, error)
	IncreaseStock(ctx context.Context, productID, quantity int64) (int64, error)
}

type productRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("product_repository"),
	}
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("name", product.Name))

	query := `
		INSERT INTO products (name, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, product.Name, product.Price, product.Stock).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	query := `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

func (r *productRepo) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	query := `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products
		WHERE ($3 = '' OR name ILIKE '%' || $3 || '%')
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset, search)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *productRepo) DecreaseStock(ctx context.Context, productID, quantity int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	// Single-statement check-and-decrement keeps the reservation atomic
	// under concurrent callers.
	query := `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING price
	`

	var price int64
	err := r.pool.QueryRow(ctx, query, quantity, productID).Scan(&price)
	if err == nil {
		return price, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)

		return 0, fmt.Errorf("failed to decrease stock: %w", err)
	}

	// Distinguish a missing product from a short one.
	var stock int64
	err = r.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		span.RecordError(err)

		return 0, fmt.Errorf("failed to query stock: %w", err)
	}

	return stock, ErrInsufficientStock
}

func (r *productRepo) IncreaseStock(ctx context.Context, productID, quantity int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.IncreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING price
	`

	var price int64
	err := r.pool.QueryRow(ctx, query, quantity, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}

		span.RecordError(err)

		return 0, fmt.Errorf("failed to increase stock: %w", err)
	}

	return price, nil
}
