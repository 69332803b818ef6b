package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TruncateDecimals cuts the fractional part of amount to at most decimals digits.
// The value is never rounded.
func TruncateDecimals(amount string, decimals int) string {
	amount = strings.TrimSpace(amount)
	parts := strings.SplitN(amount, ".", 2) //nolint:gomnd
	if decimals <= 0 {
		if parts[0] == "" {
			return "0"
		}
		return parts[0]
	}
	if len(parts) == 1 {
		return amount
	}
	frac := parts[1]
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	return parts[0] + "." + frac
}

// ToBaseUnits converts a human readable amount into the smallest unit of a token
// with the given decimals, truncating any precision the token cannot represent.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Truncate(decimals).Shift(decimals).BigInt()
}

// FromBaseUnits converts an amount expressed in the smallest unit into a decimal
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// MinAmountOut applies the slippage tolerance to a router quote
func MinAmountOut(quote *big.Int) *big.Int {
	cut := new(big.Int).Mul(quote, big.NewInt(SlippageToleranceBps))
	cut.Div(cut, big.NewInt(slippageDenominator))
	return new(big.Int).Sub(quote, cut)
}
