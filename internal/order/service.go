package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// EventPublisher is implemented by the events package. Publishing happens
// after commit and is best-effort: a failed publish never fails the order.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
}

// Service drives the order workflow around the transactional repository:
// request normalization before the transaction, error classification and
// event publication after it. It holds no mutable state, so one instance
// serves all concurrent requests.
type Service struct {
	repo      Repository
	publisher EventPublisher
	txTimeout time.Duration
	logger    *slog.Logger
}

// NewService wires the service. publisher may be nil to disable events;
// txTimeout bounds the wall-clock duration of one order transaction.
func NewService(repo Repository, publisher EventPublisher, txTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		txTimeout: txTimeout,
		logger:    logger,
	}
}

// Create converts the request into a committed order. Validation failures
// surface before any transaction opens; every in-transaction failure is
// rolled back by the repository before it reaches the caller, classified
// into the typed errors of this package.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	lines, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	orderID, err := s.repo.CreateOrder(txCtx, req.UserID, lines)
	if err != nil {
		return nil, classifyTxError(err)
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("read back order %s: %w", orderID, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(ctx, o); err != nil {
			s.logger.Warn("publish order created failed", "orderId", o.ID, "error", err)
		}
	}

	s.logger.Info("order created",
		"orderId", o.ID,
		"userId", o.UserID,
		"total", o.TotalAmount.String(),
		"items", len(o.Items),
	)
	return o, nil
}

// GetByID returns a committed order with user and items.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx)
}

// classifyTxError maps infrastructure failures onto the transaction error
// contract. Typed business errors pass through untouched.
func classifyTxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
