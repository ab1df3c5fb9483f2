package domain

import "github.com/shopspring/decimal"

const DefaultAdminFeePercent = 25

var (
	corporateMarkup   = decimal.NewFromFloat(1.5)
	processingFeeRate = decimal.NewFromFloat(0.029)
	hundred           = decimal.NewFromInt(100)
)

// Coupon describes a discount as either a percentage of the subtotal or a
// fixed amount. Percent takes precedence when both are set.
type Coupon struct {
	PercentOff     int64 `json:"percent_off,omitempty"`
	AmountOffCents int64 `json:"amount_off_cents,omitempty"`
}

func (c Coupon) discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch {
	case c.PercentOff > 0:
		d = subtotal.Mul(decimal.NewFromInt(c.PercentOff)).Div(hundred)
	case c.AmountOffCents > 0:
		d = centsToDecimal(c.AmountOffCents)
	default:
		return decimal.Zero
	}
	// A coupon can never discount more than the subtotal.
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}

// PricingInput is everything order creation needs to price an order.
// Percentages are whole percents; money is in minor units.
type PricingInput struct {
	PersonalPriceCents  int64 `json:"personal_price_cents"`
	CorporatePriceCents int64 `json:"corporate_price_cents,omitempty"` // 0 means the talent set no corporate price
	IsCorporate         bool  `json:"is_corporate,omitempty"`

	AdminFeePercent  int64   `json:"admin_fee_percent,omitempty"`  // 0 means use DefaultAdminFeePercent
	InFirstTenPromo  bool    `json:"in_first_ten_promo,omitempty"` // first ten orders of a talent waive the admin fee
	CharityPercent   int64   `json:"charity_percent,omitempty"`
	CharityName      string  `json:"charity_name,omitempty"`
	Coupon           *Coupon `json:"coupon,omitempty"`
	AvailableCredits int64   `json:"available_credits,omitempty"` // customer credit balance, cents
}

// Quote holds the priced order. All intermediate values stay as exact
// decimals; rounding to cents happens only in the Cents accessors.
type Quote struct {
	Subtotal       decimal.Decimal
	AdminFee       decimal.Decimal
	Charity        decimal.Decimal
	Discount       decimal.Decimal
	ProcessingFee  decimal.Decimal
	Total          decimal.Decimal
	CreditsApplied decimal.Decimal
	AmountDue      decimal.Decimal
}

// CalculatePricing prices an order. It is pure: the same input always
// produces the same quote, so the computation can be replayed for audits.
func CalculatePricing(in PricingInput) Quote {
	subtotal := centsToDecimal(in.PersonalPriceCents)
	if in.IsCorporate {
		if in.CorporatePriceCents > 0 {
			subtotal = centsToDecimal(in.CorporatePriceCents)
		} else {
			subtotal = subtotal.Mul(corporateMarkup)
		}
	}

	feePct := in.AdminFeePercent
	if feePct == 0 {
		feePct = DefaultAdminFeePercent
	}
	if in.InFirstTenPromo {
		feePct = 0
	}
	// The admin fee comes out of the talent payout, never the charge.
	adminFee := subtotal.Mul(decimal.NewFromInt(feePct)).Div(hundred)

	charity := decimal.Zero
	if in.CharityPercent > 0 && in.CharityName != "" {
		charity = subtotal.Mul(decimal.NewFromInt(in.CharityPercent)).Div(hundred)
	}

	discount := decimal.Zero
	if in.Coupon != nil {
		discount = in.Coupon.discount(subtotal)
	}

	afterDiscount := subtotal.Sub(discount)
	processingFee := afterDiscount.Mul(processingFeeRate)
	total := afterDiscount.Add(processingFee)

	credits := centsToDecimal(in.AvailableCredits)
	if credits.GreaterThan(total) {
		credits = total
	}
	amountDue := total.Sub(credits)
	if amountDue.IsNegative() {
		amountDue = decimal.Zero
	}

	return Quote{
		Subtotal:       subtotal,
		AdminFee:       adminFee,
		Charity:        charity,
		Discount:       discount,
		ProcessingFee:  processingFee,
		Total:          total,
		CreditsApplied: credits,
		AmountDue:      amountDue,
	}
}

// AmountDueCents is what the customer is actually charged.
func (q Quote) AmountDueCents() int64 { return toCents(q.AmountDue) }

// AmountCents is the payout base stored on the order. When the total is
// zero (fully couponed), the subtotal is used instead so payout math still
// has a real base.
func (q Quote) AmountCents() int64 {
	if q.Total.IsZero() {
		return toCents(q.Subtotal)
	}
	return toCents(q.Total)
}

func (q Quote) SubtotalCents() int64      { return toCents(q.Subtotal) }
func (q Quote) AdminFeeCents() int64      { return toCents(q.AdminFee) }
func (q Quote) CharityCents() int64       { return toCents(q.Charity) }
func (q Quote) DiscountCents() int64      { return toCents(q.Discount) }
func (q Quote) ProcessingFeeCents() int64 { return toCents(q.ProcessingFee) }
func (q Quote) TotalCents() int64         { return toCents(q.Total) }

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
