package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type CreateProductRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Price int64  `json:"price" validate:"required,gt=0"`
	Stock int64  `json:"stock" validate:"gte=0"`
}

type CatalogService interface {
	Create(ctx context.Context, req *CreateProductRequest) (*domain.Product, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, error)
	Reserve(ctx context.Context, productID, quantity int64) (domain.Reservation, error)
	Release(ctx context.Context, productID, quantity int64) (domain.Reservation, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
	validate    *validator.Validate
	tracer      trace.Tracer
}

func NewCatalogService(productRepo repository.ProductRepository, logger *zap.Logger) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		logger:      logger,
		validate:    validator.New(),
		tracer:      otel.Tracer("catalog_service"),
	}
}

func (s *catalogService) Create(ctx context.Context, req *CreateProductRequest) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Create")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.New(apperr.KindValidation, utils.FormatValidationError(err))
	}

	product := &domain.Product{
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		span.RecordError(err)

		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
	)

	return product, nil
}

func (s *catalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.FindByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperr.NotFound("product %d not found", id)
		}

		span.RecordError(err)

		return nil, err
	}

	return product, nil
}

func (s *catalogService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.List")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.productRepo.List(ctx, limit, offset, search)
}

// Reserve atomically checks and decrements stock, returning the price
// snapshot the order service embeds into the order.
func (s *catalogService) Reserve(ctx context.Context, productID, quantity int64) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	if quantity <= 0 {
		return domain.Reservation{}, apperr.Validation("quantity must be positive")
	}

	price, err := s.productRepo.DecreaseStock(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.Reservation{}, apperr.NotFound("product %d not found", productID)
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			// price holds the remaining stock on this error path.
			return domain.Reservation{}, apperr.Conflict(
				"insufficient stock for product %d: requested %d, available %d",
				productID, quantity, price,
			)
		}

		span.RecordError(err)

		return domain.Reservation{}, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Stock reserved",
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
	)

	return domain.Reservation{ProductID: productID, Price: price}, nil
}

// Release returns previously reserved stock; it is the compensating action
// of Reserve.
func (s *catalogService) Release(ctx context.Context, productID, quantity int64) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.Release")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	if quantity <= 0 {
		return domain.Reservation{}, apperr.Validation("quantity must be positive")
	}

	price, err := s.productRepo.IncreaseStock(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.Reservation{}, apperr.NotFound("product %d not found", productID)
		}

		span.RecordError(err)

		return domain.Reservation{}, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Stock released",
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
	)

	return domain.Reservation{ProductID: productID, Price: price}, nil
}
