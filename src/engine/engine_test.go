package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaengine/src/asset"
	"dcaengine/src/model"
)

type fakeStore struct {
	orders  map[uint]*model.Order
	findErr error
	saveErr error
	saves   int
	// afterFind runs once a read returned, before the engine writes back.
	afterFind func()
}

func (s *fakeStore) FindByID(_ context.Context, id uint) (*model.Order, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	stored, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	loaded := *stored
	if s.afterFind != nil {
		s.afterFind()
	}
	return &loaded, nil
}

func (s *fakeStore) SaveGuarded(_ context.Context, order *model.Order, priorRemaining decimal.Decimal, priorSlices uint) (bool, error) {
	if s.saveErr != nil {
		return false, s.saveErr
	}
	stored, ok := s.orders[order.ID]
	if !ok {
		return false, nil
	}
	if stored.Status != model.OrderStatusActive ||
		!stored.RemainingAmount.Equal(priorRemaining) ||
		stored.SlicesExecuted != priorSlices {
		return false, nil
	}
	s.saves++
	*stored = *order
	return true, nil
}

type gatewayCall struct {
	venue    string
	amountIn decimal.Decimal
}

type fakeGateway struct {
	out   decimal.Decimal
	err   error
	calls []gatewayCall
	// errFor fails only the named venue, everything else succeeds.
	errFor string
	panics bool
}

func (g *fakeGateway) Invoke(_ context.Context, venueName string, _, _ asset.Asset, amountIn decimal.Decimal, _ json.RawMessage) (decimal.Decimal, error) {
	g.calls = append(g.calls, gatewayCall{venue: venueName, amountIn: amountIn})
	if g.panics {
		panic("venue client blew up")
	}
	if g.err != nil {
		return decimal.Zero, g.err
	}
	if g.errFor != "" && g.errFor == venueName {
		return decimal.Zero, errors.New("venue not whitelisted")
	}
	return g.out, nil
}

type payment struct {
	asset  string
	to     string
	amount decimal.Decimal
}

type fakePayer struct {
	payments []payment
	err      error
}

func (p *fakePayer) Pay(_ context.Context, a asset.Asset, to string, amount decimal.Decimal) error {
	if p.err != nil {
		return p.err
	}
	p.payments = append(p.payments, payment{asset: a.Symbol, to: to, amount: amount})
	return nil
}

type fakeParams struct {
	params *model.EngineParams
}

func (p *fakeParams) Current(_ context.Context) (*model.EngineParams, error) {
	return p.params, nil
}

type fakeNotifier struct {
	events []*model.OrderEvent
}

func (n *fakeNotifier) Publish(_ context.Context, event *model.OrderEvent) {
	n.events = append(n.events, event)
}

func (n *fakeNotifier) byType(eventType string) []*model.OrderEvent {
	var matched []*model.OrderEvent
	for _, event := range n.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestOrder() *model.Order {
	return &model.Order{
		ID:              1,
		Owner:           "alice",
		InputAsset:      "USDT",
		OutputAsset:     "WETH",
		TotalAmount:     dec("1000"),
		RemainingAmount: dec("1000"),
		AmountPerSlice:  dec("100"),
		IntervalSeconds: 3600,
		Status:          model.OrderStatusActive,
	}
}

type testEngine struct {
	engine   *Engine
	store    *fakeStore
	gateway  *fakeGateway
	payer    *fakePayer
	notifier *fakeNotifier
}

func newTestEngine(orders ...*model.Order) *testEngine {
	store := &fakeStore{orders: map[uint]*model.Order{}}
	for _, order := range orders {
		store.orders[order.ID] = order
	}

	gateway := &fakeGateway{out: dec("150")}
	payer := &fakePayer{}
	notifier := &fakeNotifier{}
	params := &fakeParams{params: &model.EngineParams{
		MinIntervalSeconds: 60,
		FeeBps:             50,
		FeeRecipient:       "protocol-fees",
	}}

	eng := NewEngine(store, gateway, payer, params, notifier, NewGuard(), nil)

	return &testEngine{
		engine:   eng,
		store:    store,
		gateway:  gateway,
		payer:    payer,
		notifier: notifier,
	}
}

func TestExecuteBatchSingleSliceScenario(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	te.engine.now = func() time.Time { return now }

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.True(t, result.Succeeded)
	assert.True(t, result.AmountOut.Equal(dec("150")), "amountOut = %s", result.AmountOut)
	assert.True(t, result.Fee.Equal(dec("0.75")), "fee = %s", result.Fee)

	assert.True(t, order.RemainingAmount.Equal(dec("900")))
	assert.Equal(t, uint(1), order.SlicesExecuted)
	require.NotNil(t, order.LastExecutedAt)
	assert.Equal(t, now, *order.LastExecutedAt)
	assert.Equal(t, model.OrderStatusActive, order.Status)

	require.Len(t, te.payer.payments, 2)
	assert.Equal(t, payment{asset: "WETH", to: "alice", amount: dec("149.25")}, te.payer.payments[0])
	assert.Equal(t, payment{asset: "WETH", to: "protocol-fees", amount: dec("0.75")}, te.payer.payments[1])

	succeeded := te.notifier.byType(model.EventExecutionSucceeded)
	require.Len(t, succeeded, 1)
	assert.True(t, succeeded[0].AmountIn.Equal(dec("100")))
	assert.True(t, succeeded[0].AmountOut.Equal(dec("150")))
	assert.True(t, succeeded[0].Fee.Equal(dec("0.75")))
}

func TestExecuteBatchThrottle(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)

	firstRun := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	te.engine.now = func() time.Time { return firstRun }

	_, err := te.engine.ExecuteBatch(context.Background(), []Request{{OrderID: 1, AmountIn: dec("100"), Venue: "uniswap"}})
	require.NoError(t, err)

	// Second attempt 10 seconds later: interval (3600s) not met.
	te.engine.now = func() time.Time { return firstRun.Add(10 * time.Second) }

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{OrderID: 1, AmountIn: dec("100"), Venue: "uniswap"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Succeeded)
	assert.Equal(t, ReasonIntervalNotMet, results[0].Reason)

	// State unchanged from the first execution.
	assert.True(t, order.RemainingAmount.Equal(dec("900")))
	assert.Equal(t, uint(1), order.SlicesExecuted)
	assert.Equal(t, firstRun, *order.LastExecutedAt)

	failed := te.notifier.byType(model.EventExecutionFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, ReasonIntervalNotMet, failed[0].Reason)
}

func TestExecuteBatchRejectsBadAmounts(t *testing.T) {
	cases := []struct {
		name     string
		amountIn decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", dec("-5")},
		{"over remaining", dec("1001")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := newTestOrder()
			te := newTestEngine(order)

			results, err := te.engine.ExecuteBatch(context.Background(), []Request{{OrderID: 1, AmountIn: tc.amountIn, Venue: "uniswap"}})
			require.NoError(t, err)
			require.Len(t, results, 1)

			assert.False(t, results[0].Succeeded)
			assert.Equal(t, ReasonInvalidAmount, results[0].Reason)
			assert.True(t, order.RemainingAmount.Equal(dec("1000")))
			assert.Equal(t, uint(0), order.SlicesExecuted)
			assert.Empty(t, te.gateway.calls)
		})
	}
}

func TestExecuteBatchUnknownAndTerminalOrders(t *testing.T) {
	cancelled := newTestOrder()
	cancelled.ID = 2
	cancelled.Status = model.OrderStatusCancelled
	cancelled.RemainingAmount = decimal.Zero

	te := newTestEngine(cancelled)

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{
		{OrderID: 99, AmountIn: dec("100"), Venue: "uniswap"},
		{OrderID: 2, AmountIn: dec("100"), Venue: "uniswap"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, ReasonOrderNotFound, results[0].Reason)
	assert.Equal(t, ReasonOrderNotActive, results[1].Reason)

	// Terminal orders stay untouched.
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, uint(0), cancelled.SlicesExecuted)
	assert.Empty(t, te.gateway.calls)
}

func TestExecuteBatchIsolatesFailures(t *testing.T) {
	first := newTestOrder()
	second := newTestOrder()
	second.ID = 2
	third := newTestOrder()
	third.ID = 3

	te := newTestEngine(first, second, third)
	te.gateway.errFor = "shady-venue"

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{
		{OrderID: 1, AmountIn: dec("100"), Venue: "uniswap"},
		{OrderID: 2, AmountIn: dec("100"), Venue: "shady-venue"},
		{OrderID: 3, AmountIn: dec("100"), Venue: "uniswap"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Succeeded)
	assert.False(t, results[1].Succeeded)
	assert.Contains(t, results[1].Reason, "not whitelisted")
	assert.True(t, results[2].Succeeded)

	// The failing item neither consumed its slice nor blocked the rest.
	assert.True(t, first.RemainingAmount.Equal(dec("900")))
	assert.True(t, second.RemainingAmount.Equal(dec("1000")))
	assert.True(t, third.RemainingAmount.Equal(dec("900")))

	failed := te.notifier.byType(model.EventExecutionFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, uint(2), failed[0].OrderID)
}

func TestExecuteBatchContainsPanics(t *testing.T) {
	first := newTestOrder()
	second := newTestOrder()
	second.ID = 2

	te := newTestEngine(first, second)

	// First item panics inside the venue client; the second still runs.
	te.gateway.panics = true
	results, err := te.engine.ExecuteBatch(context.Background(), []Request{
		{OrderID: 1, AmountIn: dec("100"), Venue: "uniswap"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded)
	assert.Contains(t, results[0].Reason, "blew up")

	te.gateway.panics = false
	results, err = te.engine.ExecuteBatch(context.Background(), []Request{
		{OrderID: 2, AmountIn: dec("100"), Venue: "uniswap"},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Succeeded)
}

func TestExecuteBatchSlippageShortfall(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)
	te.gateway.out = dec("90")

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:      1,
		AmountIn:     dec("100"),
		MinAmountOut: dec("120"),
		Venue:        "uniswap",
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.False(t, result.Succeeded)
	assert.Equal(t, ReasonInsufficientReturn, result.Reason)
	assert.False(t, result.Completed)

	// The swap already happened: the slice is consumed and the realized
	// proceeds are paid out at the worse rate.
	assert.True(t, order.RemainingAmount.Equal(dec("900")))
	assert.Equal(t, uint(1), order.SlicesExecuted)
	assert.Equal(t, model.OrderStatusActive, order.Status)

	require.NotEmpty(t, te.payer.payments)
	assert.Equal(t, "alice", te.payer.payments[0].to)
	assert.True(t, te.payer.payments[0].amount.Equal(dec("89.55")))

	require.Len(t, te.notifier.byType(model.EventExecutionFailed), 1)
	assert.Empty(t, te.notifier.byType(model.EventOrderCompleted))
}

func TestExecuteBatchSlippageNeverCompletes(t *testing.T) {
	order := newTestOrder()
	order.RemainingAmount = dec("100")
	order.MinAmountOut = dec("120")

	te := newTestEngine(order)
	te.gateway.out = dec("90")

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)

	assert.False(t, results[0].Succeeded)
	assert.True(t, order.RemainingAmount.IsZero())
	assert.Equal(t, model.OrderStatusActive, order.Status)
	assert.Empty(t, te.notifier.byType(model.EventOrderCompleted))
}

func TestExecuteBatchCompletesOnZeroRemaining(t *testing.T) {
	order := newTestOrder()
	order.RemainingAmount = dec("100")

	te := newTestEngine(order)

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)

	assert.True(t, results[0].Succeeded)
	assert.True(t, results[0].Completed)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.True(t, order.RemainingAmount.IsZero())

	completed := te.notifier.byType(model.EventOrderCompleted)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Refund.IsZero())
}

func TestExecuteBatchSliceCapCompletionRefundsRemainder(t *testing.T) {
	order := newTestOrder()
	order.MaxSlices = 1

	te := newTestEngine(order)

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)

	assert.True(t, results[0].Completed)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.True(t, order.RemainingAmount.IsZero())

	// Payout, fee, then the 900 USDT remainder back to the owner.
	require.Len(t, te.payer.payments, 3)
	assert.Equal(t, payment{asset: "USDT", to: "alice", amount: dec("900")}, te.payer.payments[2])

	completed := te.notifier.byType(model.EventOrderCompleted)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Refund.Equal(dec("900")))
}

func TestExecuteBatchConcurrentCancelWithholdsPayout(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)

	// A second process cancels (and refunds) the order between the
	// engine's read and its write-back.
	te.store.afterFind = func() {
		order.Status = model.OrderStatusCancelled
		order.RemainingAmount = decimal.Zero
	}

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Succeeded)
	assert.Equal(t, ReasonConcurrentUpdate, results[0].Reason)

	// The terminal state survives and nothing leaves custody on top of
	// the refund the cancellation already paid.
	assert.Equal(t, model.OrderStatusCancelled, order.Status)
	assert.True(t, order.RemainingAmount.IsZero())
	assert.Equal(t, uint(0), order.SlicesExecuted)
	assert.Empty(t, te.payer.payments)

	failed := te.notifier.byType(model.EventExecutionFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, ReasonConcurrentUpdate, failed[0].Reason)
}

func TestExecuteBatchConcurrentSliceIsNotDoubleCounted(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)

	// Another executor's slice lands first: same order, still active,
	// but the remaining amount the engine read is stale.
	te.store.afterFind = func() {
		te.store.afterFind = nil
		order.RemainingAmount = dec("900")
		order.SlicesExecuted = 1
	}

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)

	assert.False(t, results[0].Succeeded)
	assert.Equal(t, ReasonConcurrentUpdate, results[0].Reason)
	assert.True(t, order.RemainingAmount.Equal(dec("900")))
	assert.Equal(t, uint(1), order.SlicesExecuted)
	assert.Empty(t, te.payer.payments)
}

func TestExecuteBatchRejectsReentrantCall(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)

	require.NoError(t, te.engine.guard.Enter())
	defer te.engine.guard.Leave()

	_, err := te.engine.ExecuteBatch(context.Background(), []Request{{OrderID: 1, AmountIn: dec("100"), Venue: "uniswap"}})
	assert.ErrorIs(t, err, ErrReentrantCall)
	assert.Equal(t, uint(0), order.SlicesExecuted)
}

func TestExecuteBatchPayoutFailureIsReported(t *testing.T) {
	order := newTestOrder()
	te := newTestEngine(order)
	te.payer.err = errors.New("custody node unavailable")

	results, err := te.engine.ExecuteBatch(context.Background(), []Request{{
		OrderID:  1,
		AmountIn: dec("100"),
		Venue:    "uniswap",
	}})
	require.NoError(t, err)

	assert.False(t, results[0].Succeeded)
	assert.Contains(t, results[0].Reason, "payout failed")

	// The slice stays consumed: the input was already swapped.
	assert.True(t, order.RemainingAmount.Equal(dec("900")))
}
