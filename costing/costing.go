// Package costing prices every stored recipe from the latest per-kilogram
// prices and converts the totals to dollars with the day's exchange rate.
package costing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hazyhaar/larder/record"
)

// DateLayout is the accepted date format.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("costing: invalid date, expected YYYY-MM-DD")

var thousand = decimal.NewFromInt(1000)

// RateSource provides the USD to ARS exchange rate for a day.
type RateSource interface {
	USDRate(ctx context.Context, date time.Time) (decimal.Decimal, error)
}

// Catalog is the read side of the record store used for costing.
type Catalog interface {
	Recipes() []record.Recipe
	PriceTable() map[string]decimal.Decimal
}

// Line is the cost of one ingredient.
type Line struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	QtyG    float64          `json:"qty_g"`
	PriceKg *decimal.Decimal `json:"price_per_kg"`
	CostARS decimal.Decimal  `json:"cost_ars"`
	Found   bool             `json:"found"`
}

// RecipeCost is the costed version of a recipe.
type RecipeCost struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Ingredients  []Line           `json:"ingredients"`
	TotalARS     decimal.Decimal  `json:"total_cost_ars"`
	TotalUSD     *decimal.Decimal `json:"total_cost_usd"`
	HasMissing   bool             `json:"has_missing"`
	MissingCount int              `json:"missing_count"`
}

// Report is the answer to a costing request.
type Report struct {
	Date     string           `json:"date"`
	USDRate  *decimal.Decimal `json:"usd_rate"`
	RateNote string           `json:"rate_note,omitempty"`
	Recipes  []RecipeCost     `json:"recipes"`
}

// Calculator builds costing reports.
type Calculator struct {
	catalog Catalog
	rates   RateSource
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the calculator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) { c.logger = l }
}

// WithClock overrides the time source used for the default date.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// New creates a Calculator. rates may be nil, in which case reports carry
// no USD totals.
func New(catalog Catalog, rates RateSource, opts ...Option) *Calculator {
	c := &Calculator{
		catalog: catalog,
		rates:   rates,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ParseDate validates a YYYY-MM-DD date. An empty string means today.
func (c *Calculator) ParseDate(s string) (time.Time, error) {
	if s == "" {
		now := c.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Calculate costs every recipe. date is YYYY-MM-DD or empty for today. An
// unavailable exchange rate leaves the USD fields null; it is not an error.
func (c *Calculator) Calculate(ctx context.Context, date string) (*Report, error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return nil, err
	}

	report := &Report{Date: day.Format(DateLayout), Recipes: []RecipeCost{}}
	if c.rates != nil {
		rate, err := c.rates.USDRate(ctx, day)
		if err != nil {
			c.logger.WarnContext(ctx, "costing without usd rate", "date", report.Date, "error", err)
			report.RateNote = "exchange rate unavailable"
		} else {
			report.USDRate = &rate
		}
	}

	prices := c.catalog.PriceTable()
	for _, r := range c.catalog.Recipes() {
		report.Recipes = append(report.Recipes, costRecipe(r, prices, report.USDRate))
	}
	return report, nil
}

// costRecipe computes cost_ars = qty_g / 1000 * price_per_kg per ingredient.
func costRecipe(r record.Recipe, prices map[string]decimal.Decimal, usdRate *decimal.Decimal) RecipeCost {
	rc := RecipeCost{
		ID:          r.ID,
		Name:        r.Name,
		Ingredients: make([]Line, 0, len(r.Ingredients)),
		TotalARS:    decimal.Zero,
	}
	for _, ing := range r.Ingredients {
		line := Line{ID: ing.ID, Name: ing.Name, QtyG: ing.QtyG, CostARS: decimal.Zero}
		if p, ok := prices[ing.ID]; ok && p.IsPositive() {
			perKg := p
			line.PriceKg = &perKg
			line.Found = true
			line.CostARS = decimal.NewFromFloat(ing.QtyG).Div(thousand).Mul(p).Round(2)
			rc.TotalARS = rc.TotalARS.Add(line.CostARS)
		} else {
			rc.HasMissing = true
			rc.MissingCount++
		}
		rc.Ingredients = append(rc.Ingredients, line)
	}
	if usdRate != nil && usdRate.IsPositive() {
		usd := rc.TotalARS.DivRound(*usdRate, 2)
		rc.TotalUSD = &usd
	}
	return rc
}
