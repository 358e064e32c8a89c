package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"dcaengine/src/asset"
	"dcaengine/src/model"
)

var ErrVenueNotWhitelisted = errors.New("venue not whitelisted")

type venueSource interface {
	FindByName(ctx context.Context, name string) (*model.Venue, error)
}

type custody interface {
	BalanceOf(ctx context.Context, a asset.Asset) (decimal.Decimal, error)
	Approve(ctx context.Context, a asset.Asset, spender string, amount decimal.Decimal) error
	RevokeApproval(ctx context.Context, a asset.Asset, spender string) error
}

// Invoker performs the actual call against a venue endpoint. The declared
// result of the call is deliberately ignored by the gateway.
type Invoker interface {
	Swap(ctx context.Context, v *model.Venue, input asset.Asset, amountIn decimal.Decimal, payload json.RawMessage) error
}

// Gateway gates and performs a single exchange against an allow-listed
// venue. The realized output is always measured as a custody balance
// delta, never taken from the venue's declared return, so assets with
// fee-on-transfer or non-standard return semantics are accounted
// correctly.
type Gateway struct {
	venues  venueSource
	custody custody
	invoker Invoker
	logger  *logger.Entry
}

func NewGateway(venues venueSource, custody custody, invoker Invoker, log *logger.Entry) *Gateway {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}

	return &Gateway{
		venues:  venues,
		custody: custody,
		invoker: invoker,
		logger:  log,
	}
}

// Invoke swaps amountIn of the input asset through the named venue and
// returns the measured amount of the output asset received in custody.
//
// Token inputs get a spending authorization scoped to exactly amountIn,
// and the authorization is revoked immediately after the call whether it
// succeeded or not: no standing allowance survives a single invocation.
func (g *Gateway) Invoke(
	ctx context.Context,
	venueName string,
	input asset.Asset,
	output asset.Asset,
	amountIn decimal.Decimal,
	payload json.RawMessage,
) (decimal.Decimal, error) {

	v, err := g.venues.FindByName(ctx, venueName)
	if err != nil {
		return decimal.Zero, fmt.Errorf("venue lookup failed: %w", err)
	}
	if v == nil || !v.Whitelisted {
		return decimal.Zero, ErrVenueNotWhitelisted
	}

	if !input.IsNative() {
		if err := g.custody.Approve(ctx, input, v.Account, amountIn); err != nil {
			return decimal.Zero, fmt.Errorf("venue approval failed: %w", err)
		}
	}

	preBalance, err := g.custody.BalanceOf(ctx, output)
	if err != nil {
		g.revoke(ctx, input, v)
		return decimal.Zero, fmt.Errorf("pre-invocation balance read failed: %w", err)
	}

	invokeErr := g.invoker.Swap(ctx, v, input, amountIn, payload)

	// Revoke before inspecting the call result so a failed invocation can
	// never leave the venue holding a reusable allowance.
	g.revoke(ctx, input, v)

	if invokeErr != nil {
		return decimal.Zero, fmt.Errorf("venue invocation failed: %w", invokeErr)
	}

	postBalance, err := g.custody.BalanceOf(ctx, output)
	if err != nil {
		return decimal.Zero, fmt.Errorf("post-invocation balance read failed: %w", err)
	}

	amountOut := postBalance.Sub(preBalance)
	if amountOut.IsNegative() {
		amountOut = decimal.Zero
	}

	g.logger.WithFields(logger.Fields{
		"venue":      v.Name,
		"input":      input.Symbol,
		"output":     output.Symbol,
		"amount_in":  amountIn,
		"amount_out": amountOut,
	}).Info("venue invocation settled")

	return amountOut, nil
}

func (g *Gateway) revoke(ctx context.Context, input asset.Asset, v *model.Venue) {
	if input.IsNative() {
		return
	}

	if err := g.custody.RevokeApproval(ctx, input, v.Account); err != nil {
		g.logger.WithError(err).WithField("venue", v.Name).Error("failed to revoke venue approval")
	}
}
