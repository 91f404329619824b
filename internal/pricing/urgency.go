package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-laundry/internal/money"
)

// TierCode names an urgency tier.
type TierCode string

// Urgency tiers.
const (
	TierNormal     TierCode = "NORMAL"
	TierExpress48H TierCode = "EXPRESS_48H"
	TierExpress24H TierCode = "EXPRESS_24H"
)

// UrgencyTier is a turnaround option with a percentage surcharge. A zero
// HoursToComplete means the tier carries no completion SLA.
type UrgencyTier struct {
	Code             TierCode `json:"code"`
	Name             string   `json:"name"`
	SurchargePercent int64    `json:"surchargePercent"`
	HoursToComplete  int      `json:"hoursToComplete"`
}

var urgencyTiers = []UrgencyTier{
	{Code: TierNormal, Name: "Standard turnaround", SurchargePercent: 0, HoursToComplete: 0},
	{Code: TierExpress48H, Name: "Express within 48 hours", SurchargePercent: 50, HoursToComplete: 48},
	{Code: TierExpress24H, Name: "Express within 24 hours", SurchargePercent: 100, HoursToComplete: 24},
}

// UrgencyTiers returns the available tiers in display order.
func UrgencyTiers() []UrgencyTier {
	return append([]UrgencyTier(nil), urgencyTiers...)
}

// ResolveTier maps a raw tier code to its definition. An empty code is NORMAL.
func ResolveTier(raw string) (UrgencyTier, error) {
	code := TierCode(strings.ToUpper(strings.TrimSpace(raw)))
	if code == "" {
		code = TierNormal
	}
	switch code {
	case TierNormal, TierExpress48H, TierExpress24H:
		for _, t := range urgencyTiers {
			if t.Code == code {
				return t, nil
			}
		}
	}
	return UrgencyTier{}, newError(CodeUnknownUrgencyTier, nil, "unknown urgency tier %q", raw)
}

// Expedited reports whether the tier adds a surcharge.
func (t UrgencyTier) Expedited() bool {
	return t.SurchargePercent > 0
}

// Surcharge returns round(amount * SurchargePercent / 100), or 0 for
// non-positive amounts.
func (t UrgencyTier) Surcharge(amount money.Money) money.Money {
	if amount <= 0 || !t.Expedited() {
		return 0
	}
	return money.Percent(amount, decimal.NewFromInt(t.SurchargePercent))
}
