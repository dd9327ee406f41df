package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

const uniqueViolation = "23505"

// ProcessOnce runs action at most once per eventID. The event ID is
// inserted into processed_events inside a transaction; a unique violation
// means the event was already handled and the call is a duplicate delivery,
// so it succeeds without running action. The action is retried with bounded
// exponential backoff before the whole attempt is surfaced as an error
// (leaving the offset uncommitted for redelivery).
func ProcessOnce(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	eventID int64,
	action func() error,
) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				shutdownCtx,
				logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	query := `
		INSERT INTO processed_events (event_id)
		VALUES ($1)
	`

	if _, err := tx.Exec(ctx, query, eventID); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			mylogger.Info(
				ctx,
				logger,
				"Event already processed, skipping",
				zap.Int64("event_id", eventID),
			)

			return nil
		}

		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(action, backoff.WithContext(policy, ctx)); err != nil {
		mylogger.Error(
			ctx,
			logger,
			"Failed to process event after retries",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)

		return err
	}

	return tx.Commit(ctx)
}
