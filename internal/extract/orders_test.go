package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestSyntheticSourceGeneratesFixedSize(t *testing.T) {
	dir := t.TempDir()
	cfg := config.OrdersConfig{
		Mode:  "synthetic",
		Path:  filepath.Join(dir, "orders.csv"),
		Count: 50,
		Seed:  1,
	}

	src := NewSyntheticSource(cfg, clock.NewFake(testNow))
	orders, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(orders) != 50 {
		t.Fatalf("expected 50 orders, got %d", len(orders))
	}

	yearAgo := testNow.AddDate(-1, 0, 0)
	seen := make(map[int]bool)
	for _, o := range orders {
		if seen[o.OrderID] {
			t.Errorf("duplicate order id %d", o.OrderID)
		}
		seen[o.OrderID] = true

		if o.CustomerName == "" {
			t.Errorf("order %d has empty customer name", o.OrderID)
		}
		if o.OrderAmount.IsNegative() {
			t.Errorf("order %d has negative amount %s", o.OrderID, o.OrderAmount)
		}
		if o.OrderDate.After(testNow) || o.OrderDate.Before(yearAgo.Add(-24*time.Hour)) {
			t.Errorf("order %d date %v outside expected range", o.OrderID, o.OrderDate)
		}
	}

	// The generated table is persisted alongside the run
	if _, err := os.Stat(cfg.Path); err != nil {
		t.Errorf("generated orders not persisted: %v", err)
	}
}

func TestSyntheticSourceIsDeterministicWithSeed(t *testing.T) {
	cfg := config.OrdersConfig{Mode: "synthetic", Count: 20, Seed: 42}
	clk := clock.NewFake(testNow)

	first, err := NewSyntheticSource(cfg, clk).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewSyntheticSource(cfg, clk).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs differ in size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].OrderID != second[i].OrderID ||
			first[i].CustomerName != second[i].CustomerName ||
			first[i].ProductID != second[i].ProductID ||
			!first[i].OrderAmount.Equal(second[i].OrderAmount) ||
			!first[i].OrderDate.Equal(second[i].OrderDate) {
			t.Fatalf("run mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCSVSourceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")

	cfg := config.OrdersConfig{Mode: "synthetic", Path: path, Count: 10, Seed: 7}
	generated, err := NewSyntheticSource(cfg, clock.NewFake(testNow)).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	read, err := NewCSVSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("CSV read failed: %v", err)
	}

	if len(read) != len(generated) {
		t.Fatalf("expected %d orders, got %d", len(generated), len(read))
	}
	for i := range read {
		if read[i].OrderID != generated[i].OrderID ||
			read[i].CustomerName != generated[i].CustomerName ||
			read[i].ProductID != generated[i].ProductID ||
			!read[i].OrderAmount.Equal(generated[i].OrderAmount) ||
			!read[i].OrderDate.Equal(generated[i].OrderDate) {
			t.Errorf("row %d mismatch: %+v vs %+v", i, read[i], generated[i])
		}
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	data := "order_id,customer_name,order_amount\n101,Jane Doe,55.00\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCSVSource(path).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing order_date column")
	}
}

func TestCSVSourceMalformedRowFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	data := "order_id,customer_name,order_amount,order_date\n" +
		"101,Jane Doe,55.00,2026-01-15\n" +
		"oops,John Doe,60.00,2026-02-01\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCSVSource(path).Fetch(context.Background()); err == nil {
		t.Error("expected error for malformed order_id")
	}
}

func TestNewOrderSourceUnknownMode(t *testing.T) {
	_, err := NewOrderSource(config.OrdersConfig{Mode: "database"}, clock.System{})
	if err == nil {
		t.Error("expected error for unknown mode")
	}
}
