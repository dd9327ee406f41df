package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

// Reservation is the catalog's answer to a reserve/release call: the
// product and its unit price at the moment of reservation. The price is a
// snapshot; the order never re-queries it.
type Reservation struct {
	ProductID int64 `json:"product_id"`
	Price     int64 `json:"price"`
}

// CatalogClient reserves and releases stock in the catalog service.
// Reserve is an atomic check-and-decrement on the catalog side; Release is
// its compensating action.
type CatalogClient interface {
	Reserve(ctx context.Context, productID int64, quantity int32) (Reservation, error)
	Release(ctx context.Context, productID int64, quantity int32) (Reservation, error)
}

type catalogClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

func NewCatalogClient(baseURL string, timeout time.Duration) CatalogClient {
	return &catalogClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "catalog",
		}),
		tracer: otel.Tracer("catalog_client"),
	}
}

func (c *catalogClient) Reserve(ctx context.Context, productID int64, quantity int32) (Reservation, error) {
	return c.call(ctx, "CatalogClient.Reserve", productID, quantity, "reserve")
}

func (c *catalogClient) Release(ctx context.Context, productID int64, quantity int32) (Reservation, error) {
	return c.call(ctx, "CatalogClient.Release", productID, quantity, "release")
}

func (c *catalogClient) call(ctx context.Context, spanName string, productID int64, quantity int32, action string) (Reservation, error) {
	ctx, span := c.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	res, err := utils.ExecuteWithBreaker(c.breaker, func() (Reservation, error) {
		return c.post(ctx, fmt.Sprintf("%s/products/%d/%s", c.baseURL, productID, action), quantity)
	})
	if err != nil {
		span.RecordError(err)

		return Reservation{}, err
	}

	return res, nil
}

func (c *catalogClient) post(ctx context.Context, url string, quantity int32) (Reservation, error) {
	body, err := json.Marshal(map[string]int32{"quantity": quantity})
	if err != nil {
		return Reservation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reservation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reservation{}, apperr.ExternalCall("catalog call failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reservation{}, apperr.ExternalCall("catalog response read failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &errBody); err != nil || errBody.Message == "" {
			errBody.Message = fmt.Sprintf("catalog returned status %d", resp.StatusCode)
		}

		return Reservation{}, apperr.FromHTTPStatus(resp.StatusCode, errBody.Message)
	}

	var reservation Reservation
	if err := json.Unmarshal(data, &reservation); err != nil {
		return Reservation{}, apperr.ExternalCall("catalog response decode failed", err)
	}

	return reservation, nil
}
