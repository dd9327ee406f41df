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

// OrderClient advances an order's status in the order service when a
// fulfillment stage finishes.
type OrderClient interface {
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

type orderClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

func NewOrderClient(baseURL string, timeout time.Duration) OrderClient {
	return &orderClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "orders",
		}),
		tracer: otel.Tracer("order_client"),
	}
}

func (c *orderClient) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	ctx, span := c.tracer.Start(ctx, "OrderClient.UpdateOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("status", status),
	)

	_, err := utils.ExecuteWithBreaker(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.patchStatus(ctx, orderID, status)
	})
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (c *orderClient) patchStatus(ctx context.Context, orderID int64, status string) error {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%d/status", c.baseURL, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.ExternalCall("order status update failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	data, _ := io.ReadAll(resp.Body)

	var errBody struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &errBody); err != nil || errBody.Message == "" {
		errBody.Message = fmt.Sprintf("order service returned status %d", resp.StatusCode)
	}

	return apperr.FromHTTPStatus(resp.StatusCode, errBody.Message)
}
