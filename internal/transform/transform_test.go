package transform

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/model"
)

var frozenNow = time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)

func testTransformer(taxRate float64) *Transformer {
	return New(config.TransformConfig{TaxRate: taxRate, SourceTag: "api+csv"}, clock.NewFake(frozenNow))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTransformJoinsAndDerives(t *testing.T) {
	products := []model.Product{
		{ProductID: 1, Name: "  Widget  ", UnitPrice: dec("9.99"), Category: " Tools "},
	}
	orders := []model.Order{
		{
			OrderID:      101,
			CustomerName: " Jane Doe ",
			ProductID:    1,
			OrderAmount:  dec("55.00"),
			OrderDate:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	res := testTransformer(0.10).Transform(context.Background(), products, orders)

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]

	// 9.99 * 1.10 = 10.989 → 10.99 half-up
	if got := rec.PriceWithTax.StringFixed(2); got != "10.99" {
		t.Errorf("price_with_tax = %s, want 10.99", got)
	}
	if got := rec.TotalOrderValue.StringFixed(2); got != "55.00" {
		t.Errorf("total_order_value = %s, want 55.00", got)
	}
	if rec.OrderYear != 2026 {
		t.Errorf("order_year = %d, want 2026", rec.OrderYear)
	}
	if rec.CustomerName != "Jane Doe" {
		t.Errorf("customer_name not trimmed: %q", rec.CustomerName)
	}
	if rec.ProductName != "Widget" {
		t.Errorf("product_name not trimmed: %q", rec.ProductName)
	}
	if rec.ProductCategory != "tools" {
		t.Errorf("category not normalized: %q", rec.ProductCategory)
	}
	if rec.Source != "api+csv" {
		t.Errorf("source tag = %q", rec.Source)
	}
	if !rec.LoadTimestamp.Equal(frozenNow) {
		t.Errorf("load_timestamp = %v, want %v", rec.LoadTimestamp, frozenNow)
	}
}

func TestTransformInnerJoinDropsUnmatched(t *testing.T) {
	products := []model.Product{
		{ProductID: 1, Name: "Widget", UnitPrice: dec("10.00"), Category: "tools"},
	}
	orders := []model.Order{
		{OrderID: 101, CustomerName: "A", ProductID: 1, OrderAmount: dec("10.00"), OrderDate: frozenNow},
		{OrderID: 102, CustomerName: "B", ProductID: 99, OrderAmount: dec("20.00"), OrderDate: frozenNow},
		{OrderID: 103, CustomerName: "C", ProductID: 42, OrderAmount: dec("30.00"), OrderDate: frozenNow},
	}

	res := testTransformer(0.08).Transform(context.Background(), products, orders)

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 joined record, got %d", len(res.Records))
	}
	if res.Unmatched != 2 {
		t.Errorf("expected 2 unmatched orders counted, got %d", res.Unmatched)
	}
	for _, rec := range res.Records {
		if rec.ProductID != 1 {
			t.Errorf("unmatched order leaked into output: %+v", rec)
		}
	}
}

func TestTransformRoundsHalfUp(t *testing.T) {
	cases := []struct {
		price string
		rate  float64
		want  string
	}{
		{"10.00", 0.08, "10.80"},
		{"9.99", 0.10, "10.99"},  // 10.989
		{"10.05", 0.10, "11.06"}, // 11.055 rounds up
		{"0.00", 0.08, "0.00"},
	}

	for _, tc := range cases {
		products := []model.Product{{ProductID: 1, Name: "P", UnitPrice: dec(tc.price), Category: "c"}}
		orders := []model.Order{{OrderID: 1, CustomerName: "X", ProductID: 1, OrderAmount: dec("1.00"), OrderDate: frozenNow}}

		res := testTransformer(tc.rate).Transform(context.Background(), products, orders)
		if got := res.Records[0].PriceWithTax.StringFixed(2); got != tc.want {
			t.Errorf("price %s at rate %.2f: got %s, want %s", tc.price, tc.rate, got, tc.want)
		}
	}
}

func TestTransformDeterministicWithFixedClock(t *testing.T) {
	products := []model.Product{{ProductID: 1, Name: "Widget", UnitPrice: dec("9.99"), Category: "tools"}}
	orders := []model.Order{{OrderID: 101, CustomerName: "Jane", ProductID: 1, OrderAmount: dec("55.00"), OrderDate: frozenNow}}

	tr := testTransformer(0.10)
	first := tr.Transform(context.Background(), products, orders)
	second := tr.Transform(context.Background(), products, orders)

	if len(first.Records) != len(second.Records) {
		t.Fatal("runs differ in size")
	}
	for i := range first.Records {
		a, b := first.Records[i].Fields(), second.Records[i].Fields()
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("field %d differs: %q vs %q", j, a[j], b[j])
			}
		}
	}
}

func TestTransformEmptyInputs(t *testing.T) {
	res := testTransformer(0.10).Transform(context.Background(), nil, nil)
	if len(res.Records) != 0 || res.Unmatched != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
