package services

import "strconv"

// Derived figures shown next to an IPO. All functions are pure.

const (
	GainPositive = "positive"
	GainNegative = "negative"
	GainZero     = "zero"
)

// EstimatedListingGain is the expected profit per lot: gmp × lot size. A negative
// premium gives a negative gain.
func EstimatedListingGain(gmp float64, lotSize int) float64 {
	return gmp * float64(lotSize)
}

// GainSign classifies a gain for colouring
func GainSign(v float64) string {
	switch {
	case v > 0:
		return GainPositive
	case v < 0:
		return GainNegative
	default:
		return GainZero
	}
}

// SubscriptionTotal sums the category multiples. bnii and snii are not added
// directly; they reach the total only through nii.
func SubscriptionTotal(qib, nii, retail, employee float64) float64 {
	return qib + nii + retail + employee
}

// CombinedNII returns bnii+snii when that sum is strictly positive. Otherwise the
// current nii is kept and ok is false, so a hand-entered nii survives a zero split.
func CombinedNII(bnii, snii, current float64) (float64, bool) {
	combined := bnii + snii
	if combined > 0 {
		return combined, true
	}
	return current, false
}

// ListingGainPercent is totalGain as a percentage of lotPrice; undefined when lotPrice is 0
func ListingGainPercent(totalGain, lotPrice float64) (float64, bool) {
	if lotPrice == 0 {
		return 0, false
	}
	return totalGain / lotPrice * 100, true
}

// FormatPercent renders a percentage with two decimals, e.g. "12.50%"
func FormatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}
