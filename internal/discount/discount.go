// Package discount implements the global cart discount rules: which discount
// programmes exist, which categories they reach and how much they take off.
package discount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/money"
)

var (
	// ErrUnknownType is returned for discount programmes that do not exist.
	ErrUnknownType = errors.New("unknown discount type")
	// ErrInvalidPercent is returned for custom percentages outside (0, 100].
	ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")
)

// Type names a discount programme.
type Type string

// Discount programmes.
const (
	None        Type = "NONE"
	Evercard    Type = "EVERCARD"
	SocialMedia Type = "SOCIAL_MEDIA"
	Military    Type = "MILITARY"
	Custom      Type = "CUSTOM"
)

// Option describes a discount programme for reference listings.
type Option struct {
	Type    Type            `json:"type"`
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Custom  bool            `json:"custom"`
}

var hundred = decimal.NewFromInt(100)

// Options lists every programme in display order. Custom carries no fixed rate.
func Options() []Option {
	return []Option{
		{Type: None, Name: "No discount", Percent: decimal.Zero},
		{Type: Evercard, Name: "Evercard holder", Percent: decimal.NewFromInt(10)},
		{Type: SocialMedia, Name: "Social media follower", Percent: decimal.NewFromInt(5)},
		{Type: Military, Name: "Military personnel", Percent: decimal.NewFromInt(10)},
		{Type: Custom, Name: "Custom percentage", Percent: decimal.Zero, Custom: true},
	}
}

// Rule is a resolved discount request.
type Rule struct {
	Type    Type
	Percent decimal.Decimal
}

// Active reports whether the rule takes anything off.
func (r Rule) Active() bool {
	return r.Percent.IsPositive()
}

// Resolve validates a raw request. An empty type with a positive percent is a
// custom discount; fixed programmes ignore the supplied percent.
func Resolve(rawType string, percent decimal.Decimal) (Rule, error) {
	typ := Type(strings.ToUpper(strings.TrimSpace(rawType)))
	if typ == "" {
		if percent.IsPositive() {
			typ = Custom
		} else {
			typ = None
		}
	}
	switch typ {
	case None:
		return Rule{Type: None, Percent: decimal.Zero}, nil
	case Evercard, SocialMedia, Military:
		for _, opt := range Options() {
			if opt.Type == typ {
				return Rule{Type: typ, Percent: opt.Percent}, nil
			}
		}
		return Rule{}, fmt.Errorf("%w: %s", ErrUnknownType, rawType)
	case Custom:
		if percent.IsNegative() || percent.GreaterThan(hundred) {
			return Rule{}, fmt.Errorf("%w: %s", ErrInvalidPercent, percent)
		}
		return Rule{Type: Custom, Percent: percent}, nil
	default:
		return Rule{}, fmt.Errorf("%w: %s", ErrUnknownType, rawType)
	}
}

// AppliesTo reports whether a discount may reach items of the category.
func AppliesTo(code catalog.CategoryCode) bool {
	return catalog.DiscountEligible(code)
}

// Line is a priced item considered for the discount.
type Line struct {
	Category catalog.CategoryCode
	Amount   money.Money
}

// EligibleSubtotal sums the lines the discount may reach and counts them.
func EligibleSubtotal(lines []Line) (money.Money, int) {
	var (
		total money.Money
		count int
	)
	for _, l := range lines {
		if l.Amount <= 0 || !AppliesTo(l.Category) {
			continue
		}
		total += l.Amount
		count++
	}
	return total, count
}

// Compute determines the discount amount for an eligible subtotal. The result
// never exceeds the eligible amount and is never negative.
func Compute(eligible money.Money, r Rule) money.Money {
	if eligible <= 0 || !r.Active() {
		return 0
	}
	amount := money.Percent(eligible, r.Percent)
	if amount > eligible {
		amount = eligible
	}
	if amount < 0 {
		return 0
	}
	return amount
}
