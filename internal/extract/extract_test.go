package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commercelake/reportfeed/internal/model"
)

type fakeProducts struct {
	recs  []model.Product
	err   error
	delay time.Duration
}

func (f fakeProducts) Fetch(ctx context.Context) ([]model.Product, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.recs, f.err
}

type fakeOrders struct {
	recs []model.Order
	err  error
}

func (f fakeOrders) Fetch(ctx context.Context) ([]model.Order, error) {
	return f.recs, f.err
}

func TestExtractorRunsBothSources(t *testing.T) {
	products := []model.Product{{ProductID: 1, Name: "Widget", UnitPrice: decimal.NewFromInt(10), Category: "tools"}}
	orders := []model.Order{{OrderID: 101, CustomerName: "Jane Doe", ProductID: 1, OrderAmount: decimal.NewFromInt(50)}}

	e := New(fakeProducts{recs: products}, fakeOrders{recs: orders})
	gotProducts, gotOrders, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(gotProducts) != 1 || len(gotOrders) != 1 {
		t.Errorf("expected 1 product and 1 order, got %d and %d", len(gotProducts), len(gotOrders))
	}
}

func TestExtractorProductFailureSurfacesAsExtractionError(t *testing.T) {
	e := New(fakeProducts{err: fmt.Errorf("connection refused")}, fakeOrders{})

	_, _, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extract.Error, got %T", err)
	}
	if extractErr.Source != "api" {
		t.Errorf("expected source api, got %s", extractErr.Source)
	}
}

func TestExtractorOrderFailureSurfacesAsExtractionError(t *testing.T) {
	e := New(
		fakeProducts{recs: []model.Product{{ProductID: 1}}, delay: 50 * time.Millisecond},
		fakeOrders{err: fmt.Errorf("bad header")},
	)

	_, _, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *extract.Error, got %T", err)
	}
	if extractErr.Source != "orders" {
		t.Errorf("expected source orders, got %s", extractErr.Source)
	}
}
