package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dcaengine/src/asset"
	"dcaengine/src/engine"
	"dcaengine/src/model"
	"dcaengine/src/notify"
	"dcaengine/src/treasury"
)

// Request-rejection errors: these abort the whole call atomically, no
// state is changed.
var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidAsset             = errors.New("invalid asset")
	ErrIntervalTooShort         = errors.New("interval too short")
	ErrOrderNotFound            = errors.New("order not found")
	ErrUnauthorizedCancellation = errors.New("unauthorized cancellation")
	ErrOrderNotActive           = errors.New("order not active")
)

type ledger interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByOwner(ctx context.Context, owner string, limit, offset int) ([]model.Order, int64, error)
	MutateLocked(ctx context.Context, orderID uint, mutate func(order *model.Order) error, commit func(order *model.Order) error) (*model.Order, error)
}

type paramsSource interface {
	Current(ctx context.Context) (*model.EngineParams, error)
}

// Service owns order creation, cancellation and the read surface. Only
// the execution engine mutates an order's economic fields besides it.
type Service struct {
	orders   ledger
	treasury treasury.Treasury
	params   paramsSource
	notifier notify.Notifier
	guard    *engine.Guard
	logger   *logrus.Entry
}

func NewService(
	orders ledger,
	custody treasury.Treasury,
	params paramsSource,
	notifier notify.Notifier,
	guard *engine.Guard,
	log *logrus.Entry,
) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if guard == nil {
		guard = engine.NewGuard()
	}

	return &Service{
		orders:   orders,
		treasury: custody,
		params:   params,
		notifier: notifier,
		guard:    guard,
		logger:   log,
	}
}

// CreateOrderInput carries the depositor's creation call.
type CreateOrderInput struct {
	Owner           string          `json:"-"`
	InputAsset      string          `json:"input_asset"`
	OutputAsset     string          `json:"output_asset"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AmountPerSlice  decimal.Decimal `json:"amount_per_slice"`
	MinAmountOut    decimal.Decimal `json:"min_amount_out"`
	MaxSlices       uint            `json:"max_slices"`
	IntervalSeconds int64           `json:"interval_seconds"`
}

// CreateOrder validates the request, collects the deposit into custody
// (measured, not declared) and registers the order as active.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	inputAsset, err := asset.Parse(in.InputAsset)
	if err != nil {
		return nil, ErrInvalidAsset
	}
	outputAsset, err := asset.Parse(in.OutputAsset)
	if err != nil {
		return nil, ErrInvalidAsset
	}

	if !in.TotalAmount.IsPositive() || !in.AmountPerSlice.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if in.AmountPerSlice.GreaterThan(in.TotalAmount) {
		return nil, ErrInvalidAmount
	}
	if in.MinAmountOut.IsNegative() {
		return nil, ErrInvalidAmount
	}

	params, err := s.params.Current(ctx)
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errors.New("engine params not seeded")
	}

	if in.IntervalSeconds < params.MinIntervalSeconds {
		return nil, ErrIntervalTooShort
	}
	if params.MaxSlices > 0 && in.MaxSlices > params.MaxSlices {
		return nil, ErrInvalidAmount
	}

	if err := s.guard.Enter(); err != nil {
		return nil, err
	}
	defer s.guard.Leave()

	received, err := s.treasury.Collect(ctx, inputAsset, in.Owner, in.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}
	if !received.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// Fee-on-transfer deposits shrink the committed total; the slice size
	// shrinks with it so the creation invariant keeps holding.
	amountPerSlice := in.AmountPerSlice
	if amountPerSlice.GreaterThan(received) {
		amountPerSlice = received
	}

	order := &model.Order{
		Owner:           in.Owner,
		InputAsset:      inputAsset.Symbol,
		OutputAsset:     outputAsset.Symbol,
		TotalAmount:     received,
		RemainingAmount: received,
		AmountPerSlice:  amountPerSlice,
		MinAmountOut:    in.MinAmountOut,
		MaxSlices:       in.MaxSlices,
		IntervalSeconds: in.IntervalSeconds,
		Status:          model.OrderStatusActive,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, &model.OrderEvent{
		OrderID:  order.ID,
		Type:     model.EventOrderCreated,
		AmountIn: received,
	})

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"owner":    order.Owner,
		"total":    order.TotalAmount,
	}).Info("order created")

	return order, nil
}

// CancelOrder refunds the remaining balance to the owner and finalizes
// the order. Owner-only; terminal orders cannot be cancelled again.
func (s *Service) CancelOrder(ctx context.Context, orderID uint, caller string) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Leave()

	// The order row stays locked until the refund has settled, so a
	// concurrently executing slice cannot slip between the read and the
	// finalization, and a failed refund transfer rolls the cancellation
	// back instead of leaving a terminal order with funds undelivered.
	var refund decimal.Decimal
	order, err := s.orders.MutateLocked(ctx, orderID,
		func(order *model.Order) error {
			if order.Owner != caller {
				return ErrUnauthorizedCancellation
			}
			if !order.IsActive() {
				return ErrOrderNotActive
			}

			refund = order.RemainingAmount
			order.RemainingAmount = decimal.Zero
			order.Status = model.OrderStatusCancelled
			return nil
		},
		func(order *model.Order) error {
			if refund.IsPositive() {
				if err := s.treasury.Pay(ctx, order.Input(), order.Owner, refund); err != nil {
					return fmt.Errorf("refund transfer failed: %w", err)
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}

	s.notifier.Publish(ctx, &model.OrderEvent{
		OrderID: order.ID,
		Type:    model.EventOrderCancelled,
		Refund:  refund,
	})

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"refund":   refund,
	}).Info("order cancelled")

	return nil
}

// GetOrder fetches a single order. Returns ErrOrderNotFound when the id
// is unknown.
func (s *Service) GetOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// OrderPage is one page of an owner's orders plus the total count, so
// callers can detect truncation.
type OrderPage struct {
	Orders []model.Order `json:"orders"`
	Total  int64         `json:"total"`
}

// ListOrders returns the owner's orders, optionally paginated.
func (s *Service) ListOrders(ctx context.Context, owner string, limit, offset int) (*OrderPage, error) {
	orders, total, err := s.orders.FindByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total}, nil
}
