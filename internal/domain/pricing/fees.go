package pricing

// feeRate is a per-currency processor charge: a basis-point percentage of the
// subtotal plus a fixed amount in minor units.
type feeRate struct {
	basisPoints int64
	fixedCents  int64
}

// Processor rates by settlement currency. Unlisted currencies fall back to
// the default rate.
var feeRates = map[string]feeRate{
	"USD": {basisPoints: 290, fixedCents: 30},
	"EUR": {basisPoints: 250, fixedCents: 25},
	"GBP": {basisPoints: 250, fixedCents: 20},
	"AUD": {basisPoints: 290, fixedCents: 30},
	"CAD": {basisPoints: 290, fixedCents: 30},
}

var defaultFeeRate = feeRate{basisPoints: 290, fixedCents: 30}

// processorFee returns the transaction fee for the given subtotal. The fee is
// passed through to the customer as its own line, never absorbed into the base.
func processorFee(currency string, subtotalCents int64) int64 {
	rate, ok := feeRates[currency]
	if !ok {
		rate = defaultFeeRate
	}
	return subtotalCents*rate.basisPoints/10000 + rate.fixedCents
}
