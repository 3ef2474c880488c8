// Package validate applies the declarative row schema to the enriched
// table. Individual bad rows are dropped and reported; only systemic
// failures (rejection rate over threshold, empty table) are fatal.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/metrics"
	"github.com/commercelake/reportfeed/internal/model"
)

// Violation is a single failed rule on a row.
type Violation struct {
	Field  string
	Reason string
}

// Rejected pairs a dropped row with everything that was wrong with it.
// All rules are evaluated per row; checking does not stop at the first
// failure.
type Rejected struct {
	Record     model.EnrichedRecord
	Violations []Violation
}

// Report is the outcome of validating one batch.
type Report struct {
	Valid         []model.EnrichedRecord
	Rejected      []Rejected
	RejectionRate float64
}

// SchemaError is a fatal validation failure: the batch as a whole is
// unusable, signalling an upstream problem rather than isolated bad
// rows.
type SchemaError struct {
	Reason        string
	RejectionRate float64
}

func (e *SchemaError) Error() string {
	if e.RejectionRate > 0 {
		return fmt.Sprintf("schema check failed: %s (rejection rate %.2f)", e.Reason, e.RejectionRate)
	}
	return fmt.Sprintf("schema check failed: %s", e.Reason)
}

// Rule is one declarative schema constraint. Check returns true when
// the row passes.
type Rule struct {
	Field  string
	Reason string
	Check  func(model.EnrichedRecord) bool
}

// Validator evaluates the rule table against each row.
type Validator struct {
	cfg config.ValidationConfig
	clk clock.Clock
}

func New(cfg config.ValidationConfig, clk clock.Clock) *Validator {
	return &Validator{cfg: cfg, clk: clk}
}

// rules builds the schema rule table for one batch. Batch-scoped
// context (today's date, the joined product set, order ID counts) is
// captured in the closures so the rule set stays data-driven.
func (v *Validator) rules(products map[int]struct{}, idCounts map[int]int) []Rule {
	minDate := v.cfg.MinDate()
	today := v.clk.Now().Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)

	allowed := make(map[string]struct{}, len(v.cfg.AllowedCategories))
	for _, c := range v.cfg.AllowedCategories {
		allowed[c] = struct{}{}
	}

	rules := []Rule{
		{
			Field:  "order_id",
			Reason: "duplicate order id",
			Check:  func(r model.EnrichedRecord) bool { return idCounts[r.OrderID] == 1 },
		},
		{
			Field:  "customer_name",
			Reason: "empty customer name",
			Check:  func(r model.EnrichedRecord) bool { return r.CustomerName != "" },
		},
		{
			Field:  "product_id",
			Reason: "unknown product",
			Check: func(r model.EnrichedRecord) bool {
				_, ok := products[r.ProductID]
				return ok
			},
		},
		{
			Field:  "order_amount",
			Reason: "negative amount",
			Check:  func(r model.EnrichedRecord) bool { return !r.OrderAmount.IsNegative() },
		},
		{
			Field:  "unit_price",
			Reason: "negative unit price",
			Check:  func(r model.EnrichedRecord) bool { return !r.UnitPrice.IsNegative() },
		},
		{
			Field:  "price_with_tax",
			Reason: "negative price with tax",
			Check:  func(r model.EnrichedRecord) bool { return !r.PriceWithTax.IsNegative() },
		},
		{
			Field:  "total_order_value",
			Reason: "negative total value",
			Check:  func(r model.EnrichedRecord) bool { return !r.TotalOrderValue.IsNegative() },
		},
		{
			Field:  "order_date",
			Reason: "invalid date range",
			Check: func(r model.EnrichedRecord) bool {
				return !r.OrderDate.Before(minDate) && !r.OrderDate.After(today)
			},
		},
		{
			Field:  "product_category",
			Reason: "empty category",
			Check:  func(r model.EnrichedRecord) bool { return r.ProductCategory != "" },
		},
	}

	// Closed category list is opt-in; an empty configured list keeps
	// the category set open.
	if len(allowed) > 0 {
		rules = append(rules, Rule{
			Field:  "product_category",
			Reason: "unexpected category",
			Check: func(r model.EnrichedRecord) bool {
				_, ok := allowed[r.ProductCategory]
				return ok
			},
		})
	}

	return rules
}

// Validate checks every row against the rule table. Rows failing any
// rule are moved to the rejected set with all their violation reasons.
// Returns *SchemaError when the batch is empty or the rejection rate
// exceeds the configured threshold.
func (v *Validator) Validate(ctx context.Context, records []model.EnrichedRecord, products []model.Product) (Report, error) {
	log := logging.StageLogger(ctx, "validate")
	start := time.Now()

	if len(records) == 0 {
		return Report{}, &SchemaError{Reason: "no records to validate"}
	}

	productSet := make(map[int]struct{}, len(products))
	for _, p := range products {
		productSet[p.ProductID] = struct{}{}
	}
	idCounts := make(map[int]int, len(records))
	for _, r := range records {
		idCounts[r.OrderID]++
	}

	rules := v.rules(productSet, idCounts)

	report := Report{Valid: make([]model.EnrichedRecord, 0, len(records))}
	for _, rec := range records {
		var violations []Violation
		for _, rule := range rules {
			if !rule.Check(rec) {
				violations = append(violations, Violation{Field: rule.Field, Reason: rule.Reason})
			}
		}

		if len(violations) == 0 {
			report.Valid = append(report.Valid, rec)
			continue
		}

		report.Rejected = append(report.Rejected, Rejected{Record: rec, Violations: violations})
		for _, viol := range violations {
			log.Warn("row rejected",
				"order_id", rec.OrderID,
				"field", viol.Field,
				"reason", viol.Reason,
			)
			if m := metrics.Get(); m != nil {
				m.IncRowsRejected(viol.Reason)
			}
		}
	}

	report.RejectionRate = float64(len(report.Rejected)) / float64(len(records))

	log.Info("validation complete",
		"input_records", len(records),
		"valid", len(report.Valid),
		"rejected", len(report.Rejected),
		"rejection_rate", fmt.Sprintf("%.2f", report.RejectionRate),
		"duration", time.Since(start).String(),
	)
	if m := metrics.Get(); m != nil {
		m.ObserveStageDuration("validate", time.Since(start).Seconds())
	}

	if report.RejectionRate > v.cfg.MaxRejectionRate {
		return report, &SchemaError{
			Reason:        "rejection rate over threshold",
			RejectionRate: report.RejectionRate,
		}
	}

	return report, nil
}
