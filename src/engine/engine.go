package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dcaengine/src/asset"
	"dcaengine/src/model"
	"dcaengine/src/notify"
)

// Per-slice failure reasons. These end up verbatim in failure events.
const (
	ReasonOrderNotFound      = "order not found"
	ReasonOrderNotActive     = "order not active"
	ReasonIntervalNotMet     = "interval not met"
	ReasonInvalidAmount      = "invalid amount"
	ReasonInsufficientReturn = "insufficient return amount"
	ReasonConcurrentUpdate   = "concurrent order update"
	ReasonExecutionFailed    = "execution failed"
)

const maxReasonLength = 255

type orderStore interface {
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	SaveGuarded(ctx context.Context, order *model.Order, priorRemaining decimal.Decimal, priorSlices uint) (bool, error)
}

type swapGateway interface {
	Invoke(ctx context.Context, venueName string, input, output asset.Asset, amountIn decimal.Decimal, payload json.RawMessage) (decimal.Decimal, error)
}

type payer interface {
	Pay(ctx context.Context, a asset.Asset, to string, amount decimal.Decimal) error
}

type paramsSource interface {
	Current(ctx context.Context) (*model.EngineParams, error)
}

// Request proposes one slice execution. It is ephemeral: built by the
// operator per batch, never persisted.
type Request struct {
	OrderID      uint            `json:"order_id"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"`
	Venue        string          `json:"venue"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// SliceResult is the tagged outcome of one slice execution. A failed
// slice carries a short human-readable reason; it is never surfaced as an
// error because per-slice failures must not cross item boundaries.
type SliceResult struct {
	OrderID   uint            `json:"order_id"`
	Succeeded bool            `json:"succeeded"`
	Reason    string          `json:"reason,omitempty"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`
	Fee       decimal.Decimal `json:"fee"`
	Completed bool            `json:"completed"`
}

// Engine executes single slices: eligibility checks, venue invocation,
// accounting update, fee split and event emission. Any failure along the
// way degrades to a no-op with a failure event, never an aborting error.
type Engine struct {
	orders   orderStore
	gateway  swapGateway
	treasury payer
	params   paramsSource
	notifier notify.Notifier
	guard    *Guard
	now      func() time.Time
	logger   *logrus.Entry
}

func NewEngine(
	orders orderStore,
	gateway swapGateway,
	treasury payer,
	params paramsSource,
	notifier notify.Notifier,
	guard *Guard,
	log *logrus.Entry,
) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if guard == nil {
		guard = NewGuard()
	}

	return &Engine{
		orders:   orders,
		gateway:  gateway,
		treasury: treasury,
		params:   params,
		notifier: notifier,
		guard:    guard,
		now:      time.Now,
		logger:   log,
	}
}

func (e *Engine) executeSlice(ctx context.Context, req Request) SliceResult {
	order, err := e.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return e.fail(ctx, req, shortReason(err.Error()))
	}
	if order == nil {
		return e.fail(ctx, req, ReasonOrderNotFound)
	}
	if !order.IsActive() {
		return e.fail(ctx, req, ReasonOrderNotActive)
	}

	now := e.now()
	if !order.IntervalMet(now) {
		return e.fail(ctx, req, ReasonIntervalNotMet)
	}

	if !req.AmountIn.IsPositive() || req.AmountIn.GreaterThan(order.RemainingAmount) {
		return e.fail(ctx, req, ReasonInvalidAmount)
	}

	params, err := e.params.Current(ctx)
	if err != nil || params == nil {
		return e.fail(ctx, req, "engine params unavailable")
	}

	amountOut, err := e.gateway.Invoke(ctx, req.Venue, order.Input(), order.Output(), req.AmountIn, req.Payload)
	if err != nil {
		return e.fail(ctx, req, shortReason(err.Error()))
	}

	priorRemaining := order.RemainingAmount
	priorSlices := order.SlicesExecuted

	// The swap has happened: from here on the slice is consumed no matter
	// what, otherwise the already-spent input could be proposed again.
	order.RemainingAmount = order.RemainingAmount.Sub(req.AmountIn)
	order.SlicesExecuted++
	order.LastExecutedAt = &now

	fee := amountOut.Mul(decimal.NewFromInt(params.FeeBps)).Div(decimal.NewFromInt(10000))
	payout := amountOut.Sub(fee)

	floor := req.MinAmountOut
	if floor.IsZero() {
		floor = order.MinAmountOut
	}
	shortfall := floor.IsPositive() && amountOut.LessThan(floor)

	completed := false
	var refund decimal.Decimal
	if !shortfall {
		// A slippage-failed slice never drives the completion transition.
		if order.RemainingAmount.IsZero() || (order.MaxSlices > 0 && order.SlicesExecuted >= order.MaxSlices) {
			order.Status = model.OrderStatusCompleted
			refund = order.RemainingAmount
			order.RemainingAmount = decimal.Zero
			completed = true
		}
	}

	updated, err := e.orders.SaveGuarded(ctx, order, priorRemaining, priorSlices)
	if err != nil {
		return e.fail(ctx, req, shortReason(err.Error()))
	}
	if !updated {
		// Another process finalized or executed the order between the read
		// and this write. A payout now could land on top of an
		// already-refunded balance, so the measured proceeds stay in
		// custody instead.
		return e.fail(ctx, req, ReasonConcurrentUpdate)
	}

	result := SliceResult{
		OrderID:   order.ID,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		Fee:       fee,
		Completed: completed,
	}

	// Proceeds are always delivered, even below the floor: the realized
	// output already sits in custody and belongs to the owner.
	if err := e.settle(ctx, order, params, payout, fee, refund); err != nil {
		result.Reason = shortReason("payout failed: " + err.Error())
		e.emit(ctx, order.ID, model.EventExecutionFailed, req, amountOut, fee, result.Reason)
		return result
	}

	if shortfall {
		result.Reason = ReasonInsufficientReturn
		e.emit(ctx, order.ID, model.EventExecutionFailed, req, amountOut, fee, ReasonInsufficientReturn)
		return result
	}

	result.Succeeded = true
	e.emit(ctx, order.ID, model.EventExecutionSucceeded, req, amountOut, fee, "")

	if completed {
		event := &model.OrderEvent{
			OrderID: order.ID,
			Type:    model.EventOrderCompleted,
			Refund:  refund,
		}
		e.notifier.Publish(ctx, event)
	}

	return result
}

// settle pays the owner, the fee recipient and, on a slice-cap
// completion, refunds the unconsumed remainder.
func (e *Engine) settle(
	ctx context.Context,
	order *model.Order,
	params *model.EngineParams,
	payout, fee, refund decimal.Decimal,
) error {

	output := order.Output()

	if payout.IsPositive() {
		if err := e.treasury.Pay(ctx, output, order.Owner, payout); err != nil {
			return err
		}
	}

	if fee.IsPositive() && params.FeeRecipient != "" {
		if err := e.treasury.Pay(ctx, output, params.FeeRecipient, fee); err != nil {
			return err
		}
	}

	if refund.IsPositive() {
		if err := e.treasury.Pay(ctx, order.Input(), order.Owner, refund); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) fail(ctx context.Context, req Request, reason string) SliceResult {
	e.logger.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"venue":    req.Venue,
		"reason":   reason,
	}).Warn("slice execution failed")

	e.emit(ctx, req.OrderID, model.EventExecutionFailed, req, decimal.Zero, decimal.Zero, reason)

	return SliceResult{
		OrderID:  req.OrderID,
		Reason:   reason,
		AmountIn: req.AmountIn,
	}
}

func (e *Engine) emit(ctx context.Context, orderID uint, eventType string, req Request, amountOut, fee decimal.Decimal, reason string) {
	event := &model.OrderEvent{
		OrderID:   orderID,
		Type:      eventType,
		Venue:     req.Venue,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		Fee:       fee,
		Reason:    reason,
	}
	e.notifier.Publish(ctx, event)
}

func shortReason(reason string) string {
	if reason == "" {
		return ReasonExecutionFailed
	}
	if len(reason) > maxReasonLength {
		return reason[:maxReasonLength]
	}
	return reason
}
