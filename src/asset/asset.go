package asset

import (
	"errors"
	"strings"
)

// NativeSymbol is the reserved identifier for the chain's native coin.
const NativeSymbol = "COIN"

type Kind int

const (
	KindNative Kind = iota
	KindToken
)

var ErrInvalidAsset = errors.New("invalid asset identifier")

// Asset is a closed variant over the two asset kinds the custody layer
// can move. The kind is resolved once, at order creation, and carried in
// the order record so nothing downstream branches on the sentinel symbol.
type Asset struct {
	Kind   Kind
	Symbol string
}

// Parse resolves an asset identifier into its variant. The reserved
// NativeSymbol maps to the native coin, anything else to a token.
func Parse(symbol string) (Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Asset{}, ErrInvalidAsset
	}

	if symbol == NativeSymbol {
		return Asset{Kind: KindNative, Symbol: NativeSymbol}, nil
	}

	return Asset{Kind: KindToken, Symbol: symbol}, nil
}

func (a Asset) IsNative() bool {
	return a.Kind == KindNative
}

func (a Asset) String() string {
	return a.Symbol
}
