package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/money"
)

type modifierOutcome struct {
	applied  []AppliedModifier
	subtotal money.Money
	steps    []Step
	terms    []string
	warnings []Warning
}

// applyModifiers filters mods by category, orders them by priority then code
// and applies them one by one to the running subtotal. Percentage modifiers
// compound on the subtotal left by the previous modifier.
func applyModifiers(mods []catalog.Modifier, category catalog.CategoryCode, qty decimal.Decimal, subtotal money.Money) modifierOutcome {
	out := modifierOutcome{subtotal: subtotal}

	usable := make([]catalog.Modifier, 0, len(mods))
	for _, m := range mods {
		switch {
		case !m.Active:
			out.warnings = append(out.warnings, Warning{
				Kind:    WarnModifierInactive,
				Message: fmt.Sprintf("modifier %s is inactive", m.Code),
			})
		case !m.AppliesTo(category):
			out.warnings = append(out.warnings, Warning{
				Kind:    WarnModifierNotApplicable,
				Message: fmt.Sprintf("modifier %s not applicable to category %s", m.Code, category),
			})
		default:
			usable = append(usable, m)
		}
	}
	catalog.SortModifiers(usable)

	for _, m := range usable {
		before := out.subtotal
		var (
			after money.Money
			stage Stage
			term  string
		)
		switch m.Type {
		case catalog.ModifierPercentage:
			after = before + money.PercentBps(before, m.Value)
			stage = StageModifier
			sign := "+"
			if m.Value < 0 {
				sign = "-"
			}
			term = fmt.Sprintf("* (1 %s %s) [%s]", sign, money.BpsFraction(m.Value), m.Code)
		case catalog.ModifierFixed:
			after = before + money.MulQuantity(m.Value, qty)
			stage = StageAddOn
			if m.Value < 0 {
				term = fmt.Sprintf("- %s * %s [%s]", money.Format(-m.Value), qty, m.Code)
			} else {
				term = fmt.Sprintf("+ %s * %s [%s]", money.Format(m.Value), qty, m.Code)
			}
		case catalog.ModifierReplace:
			after = money.MulQuantity(m.Value, qty)
			stage = StageReplace
			term = fmt.Sprintf("=> %s * %s [%s]", money.Format(m.Value), qty, m.Code)
		default:
			out.warnings = append(out.warnings, Warning{
				Kind:    WarnModifierNotApplicable,
				Message: fmt.Sprintf("modifier %s has unsupported type %s", m.Code, m.Type),
			})
			continue
		}

		out.subtotal = after
		out.applied = append(out.applied, AppliedModifier{
			Code:          m.Code,
			Name:          m.Name,
			Type:          m.Type,
			Value:         m.Value,
			Delta:         after - before,
			SubtotalAfter: after,
		})
		out.steps = append(out.steps, Step{
			Stage:  stage,
			Title:  m.Name,
			Detail: describeModifier(m),
			Code:   m.Code,
			Before: before,
			After:  after,
			Delta:  after - before,
		})
		out.terms = append(out.terms, term)
	}
	return out
}

func describeModifier(m catalog.Modifier) string {
	switch m.Type {
	case catalog.ModifierPercentage:
		return fmt.Sprintf("%s%% of running subtotal", decimal.New(m.Value, -2).String())
	case catalog.ModifierFixed:
		return fmt.Sprintf("%s per unit", money.Format(m.Value))
	case catalog.ModifierReplace:
		return fmt.Sprintf("replaces subtotal with %s per unit", money.Format(m.Value))
	default:
		return string(m.Type)
	}
}
