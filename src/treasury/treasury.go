package treasury

import (
	"context"

	"github.com/shopspring/decimal"

	"dcaengine/src/asset"
)

// Treasury moves value in and out of custody uniformly for both asset
// kinds. Implementations must report measured amounts, never declared
// ones, so non-standard transfer semantics cannot skew the ledger.
type Treasury interface {
	// BalanceOf returns the custody balance held in the given asset.
	BalanceOf(ctx context.Context, a asset.Asset) (decimal.Decimal, error)

	// Collect pulls a deposit from the owner's account into custody and
	// returns the amount actually received. For tokens the received
	// amount may be smaller than requested (fee-on-transfer); for the
	// native coin it must match exactly or the deposit is rejected.
	Collect(ctx context.Context, a asset.Asset, from string, amount decimal.Decimal) (decimal.Decimal, error)

	// Pay pushes funds out of custody to the given account.
	Pay(ctx context.Context, a asset.Asset, to string, amount decimal.Decimal) error

	// Approve grants the spender an allowance scoped to exactly amount.
	Approve(ctx context.Context, a asset.Asset, spender string, amount decimal.Decimal) error

	// RevokeApproval clears any outstanding allowance for the spender.
	RevokeApproval(ctx context.Context, a asset.Asset, spender string) error
}
