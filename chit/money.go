package chit

import "github.com/shopspring/decimal"

// Currency helpers. All amounts in this engine are decimal.Decimal and
// are rounded to 2 places at computation boundaries, never stored with
// accumulated division dust.

// Round2 rounds a currency amount to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustDecimal parses a stored decimal string, returning zero on
// malformed input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// perInstallment is the amount due for a single sub-installment:
// (contributionAmount × units) / collectionFactor.
func perInstallment(g Group, s Subscription) decimal.Decimal {
	factor := factorOf(g, s)
	return Round2(g.ContributionAmount.Mul(s.Units).Div(decimal.NewFromInt(int64(factor))))
}

// zeroFloor clamps a computed amount at zero.
func zeroFloor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
