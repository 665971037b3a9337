package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/marketplace-sync/internal/services/webhook/translator"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// UnitOfWork runs order-affecting work in one transaction: dedupe, link,
// order write and any status sync jobs the transition enqueues.
type UnitOfWork struct {
	pool        *pgxpool.Pool
	maxAttempts int
	logger      *slog.Logger
}

var _ translator.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a UnitOfWork. maxAttempts is stamped on jobs enqueued
// by order transitions.
func NewUnitOfWork(pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) *UnitOfWork {
	return &UnitOfWork{
		pool:        pool,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Do begins a transaction, binds the repositories to it and commits when fn
// returns nil.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos translator.Repositories) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, u.bind(tx))
	})
}

func (u *UnitOfWork) bind(tx pgx.Tx) translator.Repositories {
	return translator.Repositories{
		Events:   NewProcessedEventRepo(tx, u.logger),
		Links:    NewOrderLinkRepo(tx, u.logger),
		Mappings: NewMenuMappingRepo(tx, u.logger),
		Orders:   NewOrderLedger(tx, u.maxAttempts, u.logger),
	}
}

// TransitionOrder applies a POS-originated status change. Regressions are
// rejected with ErrConflict; repeating the current status is a no-op.
func (u *UnitOfWork) TransitionOrder(ctx context.Context, restaurantID, orderID string, to marketplace.OrderStatus) (*marketplace.Transition, error) {
	var result *marketplace.Transition
	err := pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		ledger := NewOrderLedger(tx, u.maxAttempts, u.logger)

		order, err := ledger.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if order.RestaurantID != restaurantID {
			return marketplace.ErrNotFound
		}

		result = &marketplace.Transition{OrderID: orderID, From: order.Status, To: to}
		if order.Status == to {
			return nil
		}
		if !marketplace.Advances(order.Status, to) {
			return fmt.Errorf("%w: cannot move order from %s to %s", marketplace.ErrConflict, order.Status, to)
		}

		jobs, err := ledger.Transition(ctx, orderID, to, marketplace.OriginPOS)
		if err != nil {
			return err
		}
		result.Applied = true
		result.Jobs = jobs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
