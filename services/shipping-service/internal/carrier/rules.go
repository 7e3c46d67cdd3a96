// Package carrier picks the shipping carrier for a matched order. Selection
// is a fixed rule table over amount and item count, so the same order
// always ships the same way.
package carrier

// Carrier names as they appear on shipping events.
const (
	FedEx = "FEDEX"
	UPS   = "UPS"
	USPS  = "USPS"
	DHL   = "DHL"
)

// Assignment is the carrier choice plus its delivery estimate.
type Assignment struct {
	Carrier string
	ETADays int
}

var etaDays = map[string]int{
	FedEx: 2,
	UPS:   3,
	USPS:  5,
	DHL:   4,
}

// Select applies the rule table: high-value orders get the fastest carrier,
// bulky orders the freight-friendly one, small orders the cheapest.
func Select(amount float64, itemCount int) Assignment {
	var c string
	switch {
	case amount > 500:
		c = FedEx
	case itemCount > 10:
		c = UPS
	case amount < 50:
		c = USPS
	default:
		c = DHL
	}
	return Assignment{Carrier: c, ETADays: etaDays[c]}
}
