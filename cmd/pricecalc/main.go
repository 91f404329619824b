// Command pricecalc prices items and carts offline against a catalog snapshot.
//
// Usage:
//
//	pricecalc item --id coat-wool --qty 2 --color black --modifier hand_wash
//	pricecalc cart --file cart.json --output json
//	pricecalc modifiers --category LEATHER
//	pricecalc tiers
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/money"
	"github.com/noah-isme/backend-laundry/internal/obs"
	"github.com/noah-isme/backend-laundry/internal/pricing"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	return &cli.App{
		Name:    "pricecalc",
		Usage:   "Price dry-cleaning items and carts against a catalog snapshot",
		Version: version,
		Reader:  in,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "catalog",
				Aliases: []string{"c"},
				Value:   "configs/catalog.yaml",
				Usage:   "Path to the YAML catalog snapshot",
				EnvVars: []string{"CATALOG_FILE"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format (text, json)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"OBS_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			switch c.String("output") {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unsupported output %q", c.String("output"))
			}
		},
		Commands: []*cli.Command{
			itemCommand(),
			cartCommand(),
			modifiersCommand(),
			tiersCommand(),
		},
	}
}

// newEngine loads the snapshot and builds an engine. A --now flag pins the
// clock used for completion estimates.
func newEngine(c *cli.Context) (*pricing.Engine, error) {
	snap, err := catalog.LoadSnapshotFile(c.String("catalog"))
	if err != nil {
		return nil, err
	}
	store, err := snap.Store()
	if err != nil {
		return nil, err
	}
	cfg := pricing.Config{
		Lookup: store,
		Logger: obs.NewLoggerTo(os.Stderr, "console", c.String("log-level"), "pricecalc"),
	}
	if raw := c.String("now"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		cfg.Now = func() time.Time { return at }
	}
	return pricing.NewEngine(cfg)
}

// =============================================================================
// ITEM
// =============================================================================

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "Price a single catalog item",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Catalog item id", Required: true},
			&cli.StringFlag{Name: "qty", Aliases: []string{"q"}, Value: "1", Usage: "Quantity (decimal for weight units)"},
			&cli.StringFlag{Name: "color", Usage: "Garment colour (black, white, ...)"},
			&cli.StringSliceFlag{Name: "modifier", Aliases: []string{"m"}, Usage: "Modifier code, repeatable"},
			&cli.StringFlag{Name: "urgency", Usage: "Urgency tier (NORMAL, EXPRESS_48H, EXPRESS_24H)"},
			&cli.StringFlag{Name: "material", Usage: "Declared material"},
		},
		Action: runItem,
	}
}

func runItem(c *cli.Context) error {
	qty, err := decimal.NewFromString(strings.TrimSpace(c.String("qty")))
	if err != nil {
		return fmt.Errorf("invalid quantity %q", c.String("qty"))
	}
	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	item, err := engine.CalculateItem(c.Context, pricing.ItemRequest{
		CatalogItemID: c.String("id"),
		Quantity:      qty,
		Color:         c.String("color"),
		ModifierCodes: c.StringSlice("modifier"),
		UrgencyTier:   c.String("urgency"),
		Material:      c.String("material"),
	})
	if err != nil {
		return err
	}
	if c.String("output") == "json" {
		return writeJSON(c.App.Writer, item)
	}
	return renderItem(c.App.Writer, item)
}

// =============================================================================
// CART
// =============================================================================

func cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "Price a cart described as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Value: "-", Usage: "Cart JSON file, - for stdin"},
			&cli.StringFlag{Name: "now", Usage: "Reference time (RFC 3339) for the completion estimate"},
		},
		Action: runCart,
	}
}

func runCart(c *cli.Context) error {
	req, err := readCart(c)
	if err != nil {
		return err
	}
	engine, err := newEngine(c)
	if err != nil {
		return err
	}
	res, err := engine.CalculateCart(c.Context, req)
	if err != nil {
		return err
	}
	if c.String("output") == "json" {
		return writeJSON(c.App.Writer, res)
	}
	return renderCart(c.App.Writer, res)
}

func readCart(c *cli.Context) (pricing.CartRequest, error) {
	var src io.Reader = c.App.Reader
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return pricing.CartRequest{}, fmt.Errorf("open cart: %w", err)
		}
		defer f.Close()
		src = f
	}
	var req pricing.CartRequest
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return pricing.CartRequest{}, fmt.Errorf("decode cart: %w", err)
	}
	return req, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func modifiersCommand() *cli.Command {
	return &cli.Command{
		Name:  "modifiers",
		Usage: "List the active modifiers applicable to a category",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Category code", Required: true},
		},
		Action: func(c *cli.Context) error {
			code, err := catalog.ParseCategoryCode(c.String("category"))
			if err != nil {
				return err
			}
			engine, err := newEngine(c)
			if err != nil {
				return err
			}
			mods, err := engine.ApplicableModifiers(c.Context, code)
			if err != nil {
				return err
			}
			if c.String("output") == "json" {
				return writeJSON(c.App.Writer, mods)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tTYPE\tVALUE\tPRIORITY\tNAME")
			for _, m := range mods {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", m.Code, m.Type, m.Value, m.Priority, m.Name)
			}
			return tw.Flush()
		},
	}
}

func tiersCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiers",
		Usage: "List urgency tiers",
		Action: func(c *cli.Context) error {
			tiers := pricing.UrgencyTiers()
			if c.String("output") == "json" {
				return writeJSON(c.App.Writer, tiers)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tSURCHARGE\tHOURS")
			for _, t := range tiers {
				fmt.Fprintf(tw, "%s\t%d%%\t%d\n", t.Code, t.SurchargePercent, t.HoursToComplete)
			}
			return tw.Flush()
		},
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderItem(w io.Writer, item pricing.CalculatedItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s, %s)\n", item.Name, item.CatalogItemID, item.CategoryCode)
	for _, s := range item.Steps {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.Title, signed(s.Delta), money.Format(s.After))
	}
	fmt.Fprintf(tw, "Final price\t\t%s\n", money.Format(item.FinalPrice))
	fmt.Fprintf(tw, "Formula\t%s\n", item.Formula)
	renderWarnings(tw, item.Warnings)
	return tw.Flush()
}

func renderCart(w io.Writer, res pricing.CartResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tPRICE\tSTATUS")
	for _, it := range res.Items {
		status := "ok"
		if it.Failed() {
			status = string(it.Error.Code)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.CatalogItemID, it.Quantity.String(), money.Format(it.FinalPrice), status)
	}
	fmt.Fprintf(tw, "Subtotal\t\t%s\n", money.Format(res.Subtotal))
	if res.UrgencySurcharge != 0 {
		fmt.Fprintf(tw, "Urgency %s\t\t%s\n", res.UrgencyTier, signed(res.UrgencySurcharge))
	}
	if res.Discount != nil {
		fmt.Fprintf(tw, "Discount %s (%s%%)\t\t%s\n", res.Discount.Type, res.Discount.Percent.String(), signed(-res.Discount.Amount))
	}
	fmt.Fprintf(tw, "Total\t\t%s\n", money.Format(res.Total))
	fmt.Fprintf(tw, "Ready by\t\t%s\n", res.EstimatedCompletionAt.Format(time.RFC3339))
	renderWarnings(tw, res.Warnings)
	return tw.Flush()
}

func renderWarnings(w io.Writer, warnings []pricing.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.Kind, warn.Message)
	}
}

func signed(m money.Money) string {
	if m >= 0 {
		return "+" + money.Format(m)
	}
	return money.Format(m)
}
